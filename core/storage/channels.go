package storage

import "context"

// ActiveChannels returns the channels currently in the gating set.
func (s *Store) ActiveChannels(ctx context.Context) ([]Channel, error) {
	var doc ChannelsDocument
	if err := s.readDoc(ctx, colChannels, &doc); err != nil {
		return nil, err
	}
	active := make([]Channel, 0, len(doc.Channels))
	for _, c := range doc.Channels {
		if c.Status == ChannelActive {
			active = append(active, c)
		}
	}
	return active, nil
}

// Channels returns every channel record including inactive ones.
func (s *Store) Channels(ctx context.Context) ([]Channel, error) {
	var doc ChannelsDocument
	if err := s.readDoc(ctx, colChannels, &doc); err != nil {
		return nil, err
	}
	return doc.Channels, nil
}

// UpsertChannel adds a channel to the gating set or reactivates it if a
// record already exists, refreshing the stored name and username.
func (s *Store) UpsertChannel(ctx context.Context, ch Channel) error {
	ch.Status = ChannelActive
	var doc ChannelsDocument
	return s.updateDoc(ctx, colChannels, &doc, func() (bool, error) {
		for i := range doc.Channels {
			if doc.Channels[i].ID == ch.ID {
				doc.Channels[i] = ch
				return true, nil
			}
		}
		doc.Channels = append(doc.Channels, ch)
		return true, nil
	})
}

// DeactivateChannel removes a channel from the gating set while keeping
// its record.
func (s *Store) DeactivateChannel(ctx context.Context, id int64) error {
	var doc ChannelsDocument
	return s.updateDoc(ctx, colChannels, &doc, func() (bool, error) {
		for i := range doc.Channels {
			if doc.Channels[i].ID == id {
				if doc.Channels[i].Status == ChannelInactive {
					return false, nil
				}
				doc.Channels[i].Status = ChannelInactive
				return true, nil
			}
		}
		return false, ErrNotFound
	})
}
