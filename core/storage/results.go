package storage

import "context"

// AppendResult records one completed attempt. Results are append-only.
func (s *Store) AppendResult(ctx context.Context, r Result) error {
	var doc ResultsDocument
	return s.updateDoc(ctx, colResults, &doc, func() (bool, error) {
		doc.Results = append(doc.Results, r)
		return true, nil
	})
}

// Results returns every recorded attempt.
func (s *Store) Results(ctx context.Context) ([]Result, error) {
	var doc ResultsDocument
	if err := s.readDoc(ctx, colResults, &doc); err != nil {
		return nil, err
	}
	return doc.Results, nil
}

// ResultsByUser returns the attempts of one user in insertion order.
func (s *Store) ResultsByUser(ctx context.Context, userID int64) ([]Result, error) {
	all, err := s.Results(ctx)
	if err != nil {
		return nil, err
	}
	own := make([]Result, 0, 8)
	for _, r := range all {
		if r.UserID == userID {
			own = append(own, r)
		}
	}
	return own, nil
}

// AttemptedTestIDs reports which tests the user has already completed.
func (s *Store) AttemptedTestIDs(ctx context.Context, userID int64) (map[int]bool, error) {
	own, err := s.ResultsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make(map[int]bool, len(own))
	for _, r := range own {
		ids[r.TestID] = true
	}
	return ids, nil
}
