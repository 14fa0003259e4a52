package session

import "sync"

type Store interface {
	Get() (Login, bool, error)
	Set(login Login) error
	Clear() error
}

type MemoryStore struct {
	mu    sync.RWMutex
	login *Login
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func NewMemoryStoreWith(login Login) *MemoryStore {
	return &MemoryStore{login: &login}
}

func (s *MemoryStore) Get() (Login, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.login == nil {
		return Login{}, false, nil
	}
	return *s.login, true, nil
}

func (s *MemoryStore) Set(login Login) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.login = &login
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.login = nil
	return nil
}
