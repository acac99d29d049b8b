package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftpad/payload-mcp/internal/config"
	"github.com/craftpad/payload-mcp/internal/payload"
)

// loginStub is a programmable stand-in for the Payload login endpoint that
// counts how many requests actually hit the wire.
type loginStub struct {
	mu     sync.Mutex
	calls  int
	status int
	body   string
}

func (s *loginStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls++
	status, body := s.status, s.body
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (s *loginStub) set(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

func (s *loginStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestManager(t *testing.T, stub *loginStub) *Manager {
	t.Helper()
	ts := httptest.NewServer(stub)
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.BaseURL = ts.URL
	return NewManager(cfg)
}

func TestLoginStoresTokenAndNotifiesObservers(t *testing.T) {
	stub := &loginStub{}
	stub.set(http.StatusOK, fmt.Sprintf(`{"token":"T","user":{"email":"a@x.com"},"exp":%d}`, time.Now().Add(time.Hour).Unix()))
	m := newTestManager(t, stub)

	var notified []string
	m.AddAuthCallback(func(token string) {
		notified = append(notified, token)
	})

	result, err := m.Login(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, "T", result.Token)
	assert.Equal(t, "T", m.Token())
	assert.False(t, m.IsTokenExpired())
	assert.Equal(t, []string{"T"}, notified, "observer must be invoked exactly once with the new token")
	assert.Equal(t, "a@x.com", result.User["email"])
}

func TestLoginFailureReturnsAuthenticationError(t *testing.T) {
	stub := &loginStub{}
	stub.set(http.StatusUnauthorized, `{"message":"invalid credentials"}`)
	m := newTestManager(t, stub)

	_, err := m.Login(context.Background(), "a@x.com", "bad")
	require.Error(t, err)
	assert.True(t, payload.IsAuthenticationError(err))
	assert.Contains(t, err.Error(), "invalid credentials")
	assert.Empty(t, m.Token())
}

func TestLoginMissingTokenInResponse(t *testing.T) {
	stub := &loginStub{}
	stub.set(http.StatusOK, `{"user":{"email":"a@x.com"}}`)
	m := newTestManager(t, stub)

	_, err := m.Login(context.Background(), "a@x.com", "pw")
	require.Error(t, err)
	assert.True(t, payload.IsAuthenticationError(err))
}

func TestLoginTransportFailure(t *testing.T) {
	stub := &loginStub{}
	ts := httptest.NewServer(stub)
	cfg := config.Default()
	cfg.BaseURL = ts.URL
	m := NewManager(cfg)
	ts.Close()

	_, err := m.Login(context.Background(), "a@x.com", "pw")
	require.Error(t, err)
	assert.True(t, payload.IsConnectionError(err))
}

func TestLoginWithStoredCredentialClearsOnFailure(t *testing.T) {
	stub := &loginStub{}
	stub.set(http.StatusOK, `{"token":"T"}`)
	m := newTestManager(t, stub)

	_, err := m.Login(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)
	require.Equal(t, 1, stub.callCount())

	// The credential is now stored; make the next attempt fail.
	stub.set(http.StatusUnauthorized, `{"message":"password changed"}`)
	assert.False(t, m.LoginWithStoredCredential(context.Background()))
	assert.Equal(t, 2, stub.callCount())

	// The failed credential was discarded; no further network I/O happens.
	assert.False(t, m.LoginWithStoredCredential(context.Background()))
	assert.Equal(t, 2, stub.callCount())
}

func TestLoginWithStoredCredentialSuccess(t *testing.T) {
	stub := &loginStub{}
	stub.set(http.StatusOK, `{"token":"T"}`)
	m := newTestManager(t, stub)

	m.SetCredentials("a@x.com", "pw")
	assert.True(t, m.LoginWithStoredCredential(context.Background()))
	assert.Equal(t, "T", m.Token())
}

func TestObserverPanicIsIsolated(t *testing.T) {
	stub := &loginStub{}
	stub.set(http.StatusOK, `{"token":"T"}`)
	m := newTestManager(t, stub)

	var secondCalled bool
	m.AddAuthCallback(func(string) { panic("broken observer") })
	m.AddAuthCallback(func(string) { secondCalled = true })

	require.NoError(t, m.event.StartFlow())
	_, err := m.Login(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)

	assert.True(t, secondCalled, "a panicking observer must not starve the others")
	assert.True(t, m.WaitForBrowserAuth(context.Background(), time.Second),
		"a panicking observer must not swallow the completion signal")
}

func TestIsTokenExpired(t *testing.T) {
	m := NewManager(config.Default())

	// No expiry known: optimistic default.
	m.token = "T"
	assert.False(t, m.IsTokenExpired())

	// Exactly at the buffer boundary: expired.
	m.expiry = time.Now().Add(5 * time.Minute)
	assert.True(t, m.IsTokenExpired())

	// Just outside the buffer: still valid.
	m.expiry = time.Now().Add(5*time.Minute + 10*time.Second)
	assert.False(t, m.IsTokenExpired())

	// Long past expiry.
	m.expiry = time.Now().Add(-time.Hour)
	assert.True(t, m.IsTokenExpired())
}

func TestSeedTokenExpiryFromJWT(t *testing.T) {
	// Header/payload are unsigned; only the exp claim matters here.
	cfg := config.Default()
	cfg.AuthToken = makeJWT(t, time.Now().Add(-time.Hour))
	m := NewManager(cfg)

	assert.NotEmpty(t, m.Token())
	assert.True(t, m.IsTokenExpired())
}

func TestAuthStatus(t *testing.T) {
	m := NewManager(config.Default())
	m.SetCredentials("a@x.com", "pw")

	status := m.AuthStatus()
	assert.Equal(t, false, status["has_token"])
	assert.Equal(t, true, status["has_credentials"])
	assert.Equal(t, "a@x.com", status["user_email"])
	assert.Equal(t, "users", status["collection"])
}

func TestAuthHeaders(t *testing.T) {
	m := NewManager(config.Default())
	assert.NotContains(t, m.AuthHeaders(), "Authorization")

	m.token = "T"
	assert.Equal(t, "JWT T", m.AuthHeaders()["Authorization"])
}
