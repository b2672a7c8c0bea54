package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/verte-zerg/madrasa/internal/model"
)

// SessionStore persists the sign-in state between runs.
type SessionStore interface {
	LoadSession(ctx context.Context) (model.SessionState, bool, error)
	SaveSession(ctx context.Context, st model.SessionState) error
	ClearSession(ctx context.Context) error
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (model.SessionState, error)
}

// Session holds the bearer token used by a Client. It is the only place
// the token is read from or written to.
type Session struct {
	mu    sync.RWMutex
	state model.SessionState

	// refreshMu serializes Refresh so concurrent callers share one exchange.
	refreshMu sync.Mutex

	store SessionStore
	skew  time.Duration
	now   func() time.Time
}

// NewSession returns an empty session backed by store. A nil store keeps
// the session in memory only.
func NewSession(store SessionStore, skew time.Duration) *Session {
	return &Session{store: store, skew: skew, now: time.Now}
}

// Load reads the persisted state into memory.
func (s *Session) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	st, ok, err := s.store.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

// Token returns the current access token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken
}

// User returns the signed-in user.
func (s *Session) User() model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User
}

// SignedIn reports whether an access token is held.
func (s *Session) SignedIn() bool {
	return s.Token() != ""
}

// Set replaces the state in memory and in the store.
func (s *Session) Set(ctx context.Context, st model.SessionState) error {
	if st.SavedAt.IsZero() {
		st.SavedAt = s.now()
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveSession(ctx, st); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear signs out in memory and in the store.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.state = model.SessionState{}
	s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	if err := s.store.ClearSession(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// ExpiresAt returns the exp claim of the access token. Tokens that are not
// JWTs or carry no exp report ok=false.
func (s *Session) ExpiresAt() (time.Time, bool) {
	return tokenExpiry(s.Token())
}

// NeedsRefresh reports whether the access token expires within the skew.
func (s *Session) NeedsRefresh() bool {
	exp, ok := s.ExpiresAt()
	if !ok {
		return false
	}
	return !s.now().Add(s.skew).Before(exp)
}

// Refresh exchanges the refresh token when the access token is about to
// expire. It is a no-op when no refresh is needed or possible.
func (s *Session) Refresh(ctx context.Context, r Refresher) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if !s.NeedsRefresh() {
		return nil
	}
	s.mu.RLock()
	current := s.state
	s.mu.RUnlock()
	if current.RefreshToken == "" {
		return nil
	}

	next, err := r.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if next.User.ID == 0 {
		next.User = current.User
	}
	next.SavedAt = time.Time{}
	return s.Set(ctx, next)
}

func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
