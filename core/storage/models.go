package storage

import "time"

// User is created on first contact and refreshed on every contact.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	JoinedDate  string `json:"joined_date"`
	TestsWorked int    `json:"tests_worked"`
}

// ChannelStatus marks whether a channel participates in the gating set.
type ChannelStatus string

const (
	// ChannelActive keeps the channel in the gating set.
	ChannelActive ChannelStatus = "active"
	// ChannelInactive removes the channel from gating without deleting the record.
	ChannelInactive ChannelStatus = "inactive"
)

// Channel is a gating channel record. Channels are never hard-deleted;
// they leave the gating set only via a status change.
type Channel struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Username string        `json:"username"`
	Status   ChannelStatus `json:"status"`
}

// TestStatus controls whether users can start a test.
type TestStatus string

const (
	// TestOpen allows users to take the test.
	TestOpen TestStatus = "open"
	// TestClosed hides the test from users.
	TestClosed TestStatus = "closed"
)

// Question is embedded in a Test; its position is its index in the sequence.
// Invariant: 0 <= CorrectAnswer < len(Options).
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
}

// Test is immutable in structure once created except title, status, and
// full deletion.
type Test struct {
	ID        int        `json:"id"`
	Title     string     `json:"title"`
	Status    TestStatus `json:"status"`
	Questions []Question `json:"questions"`
	CreatedAt string     `json:"created_at"`
}

// Result is an append-only record of one completed attempt. Username and
// FullName are denormalized snapshots taken at submission time.
type Result struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	TestID     int    `json:"test_id"`
	Correct    int    `json:"correct"`
	Wrong      int    `json:"wrong"`
	Percentage int    `json:"percentage"`
	Date       string `json:"date"`
}

// UsersDocument is the persisted shape of the users collection.
type UsersDocument struct {
	Users []User `json:"users"`
}

// ChannelsDocument is the persisted shape of the channels collection.
type ChannelsDocument struct {
	Channels []Channel `json:"channels"`
}

// TestsDocument is the persisted shape of the tests collection.
// LastID records the highest id ever assigned so deleting the newest test
// cannot cause id reuse.
type TestsDocument struct {
	LastID int    `json:"last_id"`
	Tests  []Test `json:"tests"`
}

// ResultsDocument is the persisted shape of the results collection.
type ResultsDocument struct {
	Results []Result `json:"results"`
}

// AdminsDocument is the persisted shape of the dynamic admin collection.
type AdminsDocument struct {
	Admins []int64 `json:"admins"`
}

const dateLayout = "2006-01-02"

// FormatDate renders a timestamp in the collection date format.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Today returns the current date in the collection date format.
func Today() string {
	return FormatDate(time.Now())
}
