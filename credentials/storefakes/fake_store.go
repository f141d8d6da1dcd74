package storefakes

import (
	"sync"

	"github.com/mealkeeper/go-grocery-client/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credentials.Store that records calls and can be
// primed to fail.
type FakeStore struct {
	lock       sync.Mutex
	creds      *credentials.Credentials
	SaveErr    error
	ClearErr   error
	SaveCalls  int
	ClearCalls int
	LoadCalls  int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (f *FakeStore) Load() (*credentials.Credentials, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.LoadCalls++
	if f.creds == nil {
		return nil, nil
	}
	copied := *f.creds
	return &copied, nil
}

func (f *FakeStore) Save(creds *credentials.Credentials) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.SaveCalls++
	if f.SaveErr != nil {
		return f.SaveErr
	}
	copied := *creds
	f.creds = &copied
	return nil
}

func (f *FakeStore) Clear() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.ClearCalls++
	if f.ClearErr != nil {
		return f.ClearErr
	}
	f.creds = nil
	return nil
}

// Stored returns the currently stored pair without counting as a Load.
func (f *FakeStore) Stored() *credentials.Credentials {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.creds
}
