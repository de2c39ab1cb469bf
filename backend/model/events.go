package model

type ChangeKind string

const (
	ShareCreated ChangeKind = "share_created"
	ShareUpdated ChangeKind = "share_updated"
	ShareDeleted ChangeKind = "share_deleted"
	FilesAdded   ChangeKind = "files_added"
	FileDeleted  ChangeKind = "file_deleted"
)

type ChangeEvent struct {
	Kind    ChangeKind
	ShareID int64
}

const subscriberBuffer = 16

// Subscribe returns a channel of store changes and a cancel func. Events
// are dropped for a subscriber whose buffer is full.
func (s *Store) Subscribe() (<-chan ChangeEvent, func()) {
	ch := make(chan ChangeEvent, subscriberBuffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (s *Store) publish(ev ChangeEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
