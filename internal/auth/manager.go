// Package auth manages JWT authentication against a Payload CMS instance.
// It holds the current bearer token and its expiry, performs logins, retries
// with stored credentials, and coordinates the interactive browser login
// flow: a short-lived localhost HTTP server collects credentials on its own
// goroutine and the completion signal is handed back to the original caller
// through a one-shot Event.
package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/craftpad/payload-mcp/internal/browser"
	"github.com/craftpad/payload-mcp/internal/config"
	"github.com/craftpad/payload-mcp/internal/payload"
	"github.com/craftpad/payload-mcp/internal/util"
)

// expiryBuffer is subtracted from the token expiry so renewal happens before
// in-flight requests can race an actually-expired token.
const expiryBuffer = 5 * time.Minute

// Credential is a stored email/password pair used for fallback re-login.
type Credential struct {
	Email    string
	Password string
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token     string
	User      map[string]any
	ExpiresAt time.Time
}

// Manager owns the token state and the browser login flow.
type Manager struct {
	httpClient *http.Client

	// loginMu serializes login attempts so two concurrent logins cannot
	// race to set conflicting token/expiry pairs.
	loginMu sync.Mutex

	mu         sync.Mutex
	baseURL    string
	collection string
	authPort   int
	token      string
	expiry     time.Time
	credential *Credential
	callbacks  []func(token string)
	server     *Server

	event *Event
}

// NewManager creates a manager from the configuration. A pre-seeded token
// from the config is adopted, with its expiry taken from the JWT exp claim
// when decodable.
func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		httpClient: util.NewHTTPClient(cfg),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		collection: cfg.Collection,
		authPort:   cfg.AuthPort,
		event:      NewEvent(),
	}
	if cfg.AuthToken != "" {
		m.token = cfg.AuthToken
		m.expiry = tokenExpiry(cfg.AuthToken)
	}
	return m
}

// UpdateConfig applies a reloaded configuration. The current token and
// credential survive; endpoint and transport settings are replaced.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	client := util.NewHTTPClient(cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	m.collection = cfg.Collection
	m.authPort = cfg.AuthPort
	m.httpClient = client
	if m.token == "" && cfg.AuthToken != "" {
		m.token = cfg.AuthToken
		m.expiry = tokenExpiry(cfg.AuthToken)
	}
}

// AddAuthCallback registers an observer invoked synchronously with the new
// token whenever authentication is renewed. Observers run in registration
// order; a panicking observer is logged and skipped.
func (m *Manager) AddAuthCallback(callback func(token string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// Token returns the current bearer token, or "" when unauthenticated.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// AuthHeaders returns the headers for an authenticated API call.
func (m *Manager) AuthHeaders() map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if token := m.Token(); token != "" {
		headers["Authorization"] = "JWT " + token
	}
	return headers
}

// SetCollection changes the auth-enabled collection used for login requests.
func (m *Manager) SetCollection(slug string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slug != "" {
		m.collection = slug
	}
}

// Collection returns the auth-enabled collection slug.
func (m *Manager) Collection() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collection
}

// SetCredentials stores a credential pair for automatic renewal.
func (m *Manager) SetCredentials(email, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = &Credential{Email: email, Password: password}
}

// ClearCredentials discards the stored credential pair.
func (m *Manager) ClearCredentials() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = nil
	log.Info("stored credentials cleared")
}

// Login authenticates against <base>/<collection>/login and, on success,
// stores the token and credential pair, computes the expiry, and notifies
// all registered observers with the new token.
func (m *Manager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	m.mu.Lock()
	loginURL := fmt.Sprintf("%s/%s/login", m.baseURL, m.collection)
	client := m.httpClient
	m.mu.Unlock()

	body, _ := sjson.Set("", "email", email)
	body, _ = sjson.Set(body, "password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, payload.NewConnectionError("failed to connect to authentication server", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, payload.NewConnectionError("failed to read login response", err)
	}

	if resp.StatusCode != http.StatusOK {
		message := gjson.GetBytes(data, "message").String()
		if message == "" {
			message = fmt.Sprintf("login failed with status %d", resp.StatusCode)
		}
		return nil, payload.NewAuthenticationError("login failed: " + message)
	}

	token := gjson.GetBytes(data, "token").String()
	if token == "" {
		return nil, payload.NewAuthenticationError("no token received from login response")
	}

	expiry := tokenExpiry(token)
	if expiry.IsZero() {
		if exp := gjson.GetBytes(data, "exp"); exp.Exists() {
			expiry = time.Unix(exp.Int(), 0)
		}
	}
	if expiry.IsZero() {
		// Defensive default when the server reports no expiry at all.
		expiry = time.Now().Add(time.Hour)
	}

	var user map[string]any
	if u, ok := gjson.GetBytes(data, "user").Value().(map[string]any); ok {
		user = u
	}

	m.mu.Lock()
	m.token = token
	m.expiry = expiry
	m.credential = &Credential{Email: email, Password: password}
	m.mu.Unlock()

	log.Infof("successfully logged in as %s", email)
	m.notifyAuthRenewed(token)

	return &LoginResult{Token: token, User: user, ExpiresAt: expiry}, nil
}

// LoginWithStoredCredential retries login with the stored credential pair.
// Any failure discards the credential so a bad pair is never retried in a
// loop, and reports false.
func (m *Manager) LoginWithStoredCredential(ctx context.Context) bool {
	m.mu.Lock()
	cred := m.credential
	m.mu.Unlock()

	if cred == nil {
		return false
	}

	if _, err := m.Login(ctx, cred.Email, cred.Password); err != nil {
		log.Errorf("login with stored credentials failed: %v", err)
		m.ClearCredentials()
		return false
	}
	return true
}

// IsTokenExpired reports whether the token is expired or within the safety
// buffer of expiring. An unknown expiry is treated as not expired.
func (m *Manager) IsTokenExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expiry.IsZero() {
		return false
	}
	return !time.Now().Before(m.expiry.Add(-expiryBuffer))
}

// AuthStatus reports the current authentication state for the status tool.
func (m *Manager) AuthStatus() map[string]any {
	m.mu.Lock()
	token := m.token
	expiry := m.expiry
	cred := m.credential
	collection := m.collection
	m.mu.Unlock()

	status := map[string]any{
		"has_token":       token != "",
		"has_credentials": cred != nil,
		"is_expired":      m.IsTokenExpired(),
		"collection":      collection,
	}
	if !expiry.IsZero() {
		status["token_expiry"] = expiry.Format(time.RFC3339)
	}
	if cred != nil {
		status["user_email"] = cred.Email
	}
	return status
}

// notifyAuthRenewed invokes every registered observer with the new token and
// then signals any pending browser-auth waiter. Observer failures are
// isolated so one broken observer cannot starve the others or swallow the
// completion signal.
func (m *Manager) notifyAuthRenewed(token string) {
	m.mu.Lock()
	callbacks := make([]func(string), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, callback := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("error in auth callback: %v", r)
				}
			}()
			callback(token)
		}()
	}

	m.event.Complete(true)
}

// StartBrowserAuth launches the interactive login flow: it starts the local
// auth server on a background goroutine and opens the login page in the
// user's browser. A flow that is already active is rejected without side
// effects; a bind or browser failure tears everything back down.
func (m *Manager) StartBrowserAuth(ctx context.Context) error {
	if err := m.event.StartFlow(); err != nil {
		log.Warn("browser authentication already in progress")
		return err
	}

	m.mu.Lock()
	port := m.authPort
	m.mu.Unlock()

	srv := NewServer(m, port)
	if err := srv.Start(ctx); err != nil {
		m.event.Reset()
		return fmt.Errorf("failed to start authentication server: %w", err)
	}

	if err := browser.OpenURL(srv.URL()); err != nil {
		_ = srv.Stop(context.Background())
		m.event.Reset()
		return fmt.Errorf("failed to open browser for authentication: %w", err)
	}

	m.mu.Lock()
	m.server = srv
	m.mu.Unlock()

	log.Infof("browser authentication started at %s", srv.URL())
	return nil
}

// WaitForBrowserAuth blocks until the browser flow completes or the timeout
// elapses, then tears down the local auth server. It returns true only when
// the flow completed successfully. It returns immediately when completion
// already happened, or when there is nothing to wait for.
func (m *Manager) WaitForBrowserAuth(ctx context.Context, timeout time.Duration) bool {
	ok := m.event.Wait(ctx, timeout)

	m.mu.Lock()
	hadServer := m.server != nil
	m.mu.Unlock()
	if !ok && hadServer {
		log.Warn("browser authentication timed out")
	}

	m.stopAuthServer()
	return ok
}

// StopBrowserAuth aborts any active flow and shuts the auth server down.
// Safe to call multiple times.
func (m *Manager) StopBrowserAuth() {
	m.stopAuthServer()
	m.event.Reset()
}

func (m *Manager) stopAuthServer() {
	m.mu.Lock()
	srv := m.server
	m.server = nil
	m.mu.Unlock()

	if srv != nil {
		_ = srv.Stop(context.Background())
	}
}
