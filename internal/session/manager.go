package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/foodsearch/storefront/pkg/auth"
	"github.com/foodsearch/storefront/pkg/config"
	pkgerrors "github.com/foodsearch/storefront/pkg/errors"
	"github.com/foodsearch/storefront/pkg/logger"
)

const (
	tokenPath   = "/api/token/"
	refreshPath = "/api/token/refresh/"
)

// EndReason says why a session ended.
type EndReason string

const (
	EndReasonLogout  EndReason = "logout"
	EndReasonExpired EndReason = "expired"
)

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Manager owns the shopper's session: it logs in against the auth backend,
// keeps the token pair in the durable slot, and tells subscribers when the
// session ends so they can drop session-bound state.
type Manager struct {
	mu     sync.Mutex
	tokens *Tokens
	claims *auth.AccessTokenClaims

	slot    TokenSlot
	http    *http.Client
	baseURL string
	logg    *logger.Logger
	now     func() time.Time

	observers []func(EndReason)
}

// NewManager builds a session manager. The session starts logged out until
// Restore or Login establishes one.
func NewManager(slot TokenSlot, cfg config.BackendConfig, logg *logger.Logger) (*Manager, error) {
	if slot == nil {
		return nil, fmt.Errorf("token slot required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("backend base url required")
	}
	return &Manager{
		slot:    slot,
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Subscribe registers fn to run whenever the session ends.
func (m *Manager) Subscribe(fn func(EndReason)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Restore loads the persisted token pair at startup. Unreadable or expired
// tokens are discarded and the slot erased; the process starts logged out
// rather than failing.
func (m *Manager) Restore(ctx context.Context) {
	stored, err := m.slot.Load(ctx)
	if err != nil {
		if m.logg != nil {
			m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "session.tokens_unreadable, starting logged out")
		}
		_ = m.slot.Erase(ctx)
		return
	}
	if stored == nil {
		return
	}

	claims, err := auth.DecodeAccessToken(stored.Access)
	if err != nil || claims.Expired(m.now()) {
		if m.logg != nil {
			m.logg.Info(ctx, "session.stored_tokens_expired, starting logged out")
		}
		_ = m.slot.Erase(ctx)
		return
	}

	m.mu.Lock()
	m.tokens = stored
	m.claims = claims
	m.mu.Unlock()

	if m.logg != nil {
		m.logg.Info(m.logg.WithUsername(ctx, claims.Username), "session.restored")
	}
}

// Login exchanges credentials for a token pair and persists it.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "username and password are required")
	}

	var pair Tokens
	if err := m.post(ctx, tokenPath, creds, &pair); err != nil {
		return err
	}

	claims, err := auth.DecodeAccessToken(pair.Access)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "auth backend returned an unreadable token")
	}

	if err := m.slot.Save(ctx, pair); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist tokens")
	}

	m.mu.Lock()
	m.tokens = &pair
	m.claims = claims
	m.mu.Unlock()

	if m.logg != nil {
		m.logg.Info(m.logg.WithUsername(ctx, claims.Username), "session.login")
	}
	return nil
}

// Refresh trades the refresh token for a new access token. A rejected
// refresh ends the session as expired.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.tokens == nil {
		m.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "no session to refresh")
	}
	refresh := m.tokens.Refresh
	m.mu.Unlock()

	var renewed struct {
		Access string `json:"access"`
	}
	err := m.post(ctx, refreshPath, map[string]string{"refresh": refresh}, &renewed)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			m.end(ctx, EndReasonExpired)
		}
		return err
	}

	claims, err := auth.DecodeAccessToken(renewed.Access)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "auth backend returned an unreadable token")
	}

	m.mu.Lock()
	pair := Tokens{Access: renewed.Access, Refresh: refresh}
	m.tokens = &pair
	m.claims = claims
	m.mu.Unlock()

	if err := m.slot.Save(ctx, pair); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist tokens")
	}
	return nil
}

// Logout ends the session. Logging out while logged out is a no-op.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	loggedIn := m.tokens != nil
	m.mu.Unlock()
	if !loggedIn {
		return
	}
	m.end(ctx, EndReasonLogout)
}

// AccessToken returns the current access token, or empty when logged out or
// when the token has already expired.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil || m.claims == nil || m.claims.Expired(m.now()) {
		return ""
	}
	return m.tokens.Access
}

// CurrentUser returns the decoded identity of the logged-in shopper, nil
// when logged out.
func (m *Manager) CurrentUser() *auth.AccessTokenClaims {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims == nil || m.claims.Expired(m.now()) {
		return nil
	}
	copied := *m.claims
	return &copied
}

// LoggedIn reports whether a live session exists.
func (m *Manager) LoggedIn() bool {
	return m.AccessToken() != ""
}

func (m *Manager) end(ctx context.Context, reason EndReason) {
	m.mu.Lock()
	m.tokens = nil
	m.claims = nil
	observers := make([]func(EndReason), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	if err := m.slot.Erase(ctx); err != nil && m.logg != nil {
		m.logg.Error(ctx, "session.token_erase_failed", err)
	}
	if m.logg != nil {
		m.logg.Info(m.logg.WithField(ctx, "reason", string(reason)), "session.ended")
	}
	for _, fn := range observers {
		fn(reason)
	}
}

func (m *Manager) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode auth request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build auth request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "reach auth backend")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "credentials rejected")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return pkgerrors.New(pkgerrors.CodeNetwork, "auth backend returned an unexpected status").WithDetails(map[string]any{
			"status": resp.StatusCode,
		})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "decode auth response")
	}
	return nil
}
