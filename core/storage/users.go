package storage

import "context"

// EnsureUser registers the user on first contact and refreshes the
// username and full name on every later contact.
func (s *Store) EnsureUser(ctx context.Context, id int64, username, fullName string) error {
	var doc UsersDocument
	return s.updateDoc(ctx, colUsers, &doc, func() (bool, error) {
		for i := range doc.Users {
			if doc.Users[i].ID != id {
				continue
			}
			if doc.Users[i].Username == username && doc.Users[i].FullName == fullName {
				return false, nil
			}
			doc.Users[i].Username = username
			doc.Users[i].FullName = fullName
			return true, nil
		}
		doc.Users = append(doc.Users, User{
			ID:         id,
			Username:   username,
			FullName:   fullName,
			JoinedDate: Today(),
		})
		return true, nil
	})
}

// IncrementTestsWorked bumps the user's completed-attempt counter.
func (s *Store) IncrementTestsWorked(ctx context.Context, id int64) error {
	var doc UsersDocument
	return s.updateDoc(ctx, colUsers, &doc, func() (bool, error) {
		for i := range doc.Users {
			if doc.Users[i].ID == id {
				doc.Users[i].TestsWorked++
				return true, nil
			}
		}
		return false, ErrNotFound
	})
}

// Users returns every registered user.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	var doc UsersDocument
	if err := s.readDoc(ctx, colUsers, &doc); err != nil {
		return nil, err
	}
	return doc.Users, nil
}

// UserByID looks up one user, reporting ErrNotFound on a miss.
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	var doc UsersDocument
	if err := s.readDoc(ctx, colUsers, &doc); err != nil {
		return User{}, err
	}
	for _, u := range doc.Users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}
