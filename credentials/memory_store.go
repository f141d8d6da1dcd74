package credentials

import "sync"

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the credential pair in process memory. Used when no
// credentials path is configured and by tests.
type MemoryStore struct {
	lock  sync.RWMutex
	creds *Credentials
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*Credentials, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.creds == nil {
		return nil, nil
	}
	copied := *s.creds
	return &copied, nil
}

func (s *MemoryStore) Save(creds *Credentials) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	copied := *creds
	s.creds = &copied
	return nil
}

func (s *MemoryStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.creds = nil
	return nil
}
