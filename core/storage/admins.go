package storage

import "context"

// DynamicAdminIDs returns the runtime-granted admin ids.
func (s *Store) DynamicAdminIDs(ctx context.Context) ([]int64, error) {
	var doc AdminsDocument
	if err := s.readDoc(ctx, colAdmins, &doc); err != nil {
		return nil, err
	}
	return doc.Admins, nil
}

// SaveDynamicAdminIDs replaces the runtime-granted admin set.
func (s *Store) SaveDynamicAdminIDs(ctx context.Context, ids []int64) error {
	var doc AdminsDocument
	return s.updateDoc(ctx, colAdmins, &doc, func() (bool, error) {
		doc.Admins = append([]int64(nil), ids...)
		return true, nil
	})
}
