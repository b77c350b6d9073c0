package twofactor_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/mfakit/pkg/twofactor"
)

type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) Get(ctx context.Context, accountID string) (*twofactor.Record, error) {
	args := m.Called(ctx, accountID)
	rec, _ := args.Get(0).(*twofactor.Record)
	return rec, args.Error(1)
}

func (m *MockCredentialStore) Put(ctx context.Context, accountID string, rec twofactor.Record) error {
	args := m.Called(ctx, accountID, rec)
	return args.Error(0)
}

func (m *MockCredentialStore) Create(ctx context.Context, accountID string, rec twofactor.Record) error {
	args := m.Called(ctx, accountID, rec)
	return args.Error(0)
}

func (m *MockCredentialStore) Clear(ctx context.Context, accountID string) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

func (m *MockCredentialStore) SwapBackupCodes(ctx context.Context, accountID string, expected, next []string) (bool, error) {
	args := m.Called(ctx, accountID, expected, next)
	return args.Bool(0), args.Error(1)
}

type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) Activate(ctx context.Context, credential, accountID string) error {
	args := m.Called(ctx, credential, accountID)
	return args.Error(0)
}

func (m *MockSessionManager) Revoke(ctx context.Context, credential string) error {
	args := m.Called(ctx, credential)
	return args.Error(0)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubRenderer struct {
	uri string
}

func (r *stubRenderer) Render(uri string) ([]byte, error) {
	r.uri = uri
	return []byte("qr:" + uri), nil
}
