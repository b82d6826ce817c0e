package auth

import "sync"

// memStore is an in-memory CredentialStore with injectable failures
type memStore struct {
	mu       sync.Mutex
	sessions map[string]Account

	storeErr error
	listErr  error
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]Account)}
}

func newMemManager() (*Manager, *memStore) {
	s := newMemStore()
	return NewManagerWithStores(s), s
}

func (m *memStore) Store(account *Account) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	if account == nil || account.Name == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[account.Name] = copyAccount(account)
	return nil
}

func (m *memStore) Retrieve(name string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.sessions[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	c := copyAccount(&a)
	return &c, nil
}

func (m *memStore) List() ([]*Account, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Account, 0, len(m.sessions))
	for _, a := range m.sessions {
		c := copyAccount(&a)
		out = append(out, &c)
	}
	return out, nil
}

func (m *memStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.sessions, name)
	return nil
}

func (m *memStore) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[name]
	return ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func copyAccount(a *Account) Account {
	c := *a
	c.Cookies = make(map[string]string, len(a.Cookies))
	for k, v := range a.Cookies {
		c.Cookies[k] = v
	}
	return c
}
