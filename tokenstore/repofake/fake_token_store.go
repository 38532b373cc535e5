package faketokenstore

import (
	"context"
	"sync"

	interrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/tokenstore"
)

var _ tokenstore.Store = (*FakeTokenStore)(nil)

// FakeTokenStore is an in-memory token store. Set the *Err fields to inject failures.
type FakeTokenStore struct {
	GetErr    error
	SetErr    error
	DeleteErr error

	token   string
	gets    int
	sets    int
	deletes int
	lock    sync.RWMutex
}

// NewFakeTokenStore returns a store pre-seeded with token; pass "" for an empty store.
func NewFakeTokenStore(token string) *FakeTokenStore {
	return &FakeTokenStore{token: token}
}

func (fs *FakeTokenStore) Get(_ context.Context) (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.gets++
	if fs.GetErr != nil {
		return "", fs.GetErr
	}
	if fs.token == "" {
		return "", interrors.ErrNoToken
	}
	return fs.token, nil
}

func (fs *FakeTokenStore) Set(_ context.Context, token string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.sets++
	if fs.SetErr != nil {
		return fs.SetErr
	}
	fs.token = token
	return nil
}

func (fs *FakeTokenStore) Delete(_ context.Context) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.deletes++
	if fs.DeleteErr != nil {
		return fs.DeleteErr
	}
	fs.token = ""
	return nil
}

// Token returns the held token without counting as a read.
func (fs *FakeTokenStore) Token() string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.token
}

// Calls returns how many times Get, Set and Delete were invoked.
func (fs *FakeTokenStore) Calls() (gets, sets, deletes int) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.gets, fs.sets, fs.deletes
}
