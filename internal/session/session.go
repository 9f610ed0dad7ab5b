// Package session owns the process-wide viewer identity: initialized on
// sign-in, cleared on sign-out, read everywhere else through an accessor so
// tests can inject an identity without touching the auth service.
package session

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"aperture-backend/internal/domain"
	"aperture-backend/internal/store"
	appErrors "aperture-backend/pkg/errors"
)

// Viewer is the signed-in identity
type Viewer struct {
	ID       string
	Email    string
	Metadata map[string]any
}

// Manager holds the current viewer and performs the auth lifecycle
type Manager struct {
	client *supabase.Client
	store  store.DataService
	logger *zap.Logger

	mu       sync.RWMutex
	current  *Viewer
	onChange []func()
}

// NewManager creates a session manager. The supabase client may be nil in
// tests that inject the viewer directly.
func NewManager(client *supabase.Client, s store.DataService, logger *zap.Logger) *Manager {
	return &Manager{
		client: client,
		store:  s,
		logger: logger,
	}
}

// SignIn authenticates with the data service, stores the viewer and lazily
// creates the profile row on first access
func (m *Manager) SignIn(ctx context.Context, email, password string) (Viewer, error) {
	session, err := m.client.SignInWithEmailPassword(email, password)
	if err != nil {
		return Viewer{}, appErrors.NewNotAuthenticated("sign in failed: " + err.Error())
	}
	m.client.UpdateAuthSession(session)

	viewer := Viewer{
		ID:       session.User.ID.String(),
		Email:    session.User.Email,
		Metadata: session.User.UserMetadata,
	}

	m.mu.Lock()
	m.current = &viewer
	m.mu.Unlock()
	m.notifyChange()

	if _, err := m.EnsureProfile(ctx, viewer); err != nil {
		// Profile creation is best effort on sign-in; reads degrade until
		// the next access retries it.
		m.logger.Warn("Failed to ensure profile on sign-in",
			zap.String("userID", viewer.ID),
			zap.Error(err),
		)
	}

	m.logger.Info("Viewer signed in", zap.String("userID", viewer.ID))
	return viewer, nil
}

// SignOut clears the viewer identity
func (m *Manager) SignOut() {
	m.mu.Lock()
	viewer := m.current
	m.current = nil
	m.mu.Unlock()
	m.notifyChange()

	if m.client != nil {
		if err := m.client.Auth.Logout(); err != nil {
			m.logger.Warn("Auth logout failed", zap.Error(err))
		}
	}
	if viewer != nil {
		m.logger.Info("Viewer signed out", zap.String("userID", viewer.ID))
	}
}

// Current returns the signed-in viewer, if any
func (m *Manager) Current() (Viewer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Viewer{}, false
	}
	return *m.current, true
}

// ViewerID returns the signed-in viewer's id, if any. Matches the accessor
// shape the change listener expects.
func (m *Manager) ViewerID() (string, bool) {
	viewer, ok := m.Current()
	if !ok {
		return "", false
	}
	return viewer.ID, true
}

// SetCurrent injects a viewer; used by tests and by token-based startup
func (m *Manager) SetCurrent(viewer *Viewer) {
	m.mu.Lock()
	m.current = viewer
	m.mu.Unlock()
	m.notifyChange()
}

// OnChange registers a callback invoked after the viewer identity changes.
// The realtime feed uses this to re-subscribe its viewer-scoped channel.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

func (m *Manager) notifyChange() {
	m.mu.RLock()
	callbacks := make([]func(), len(m.onChange))
	copy(callbacks, m.onChange)
	m.mu.RUnlock()
	for _, fn := range callbacks {
		fn()
	}
}

// EnsureProfile creates the viewer's profile row if it does not exist yet.
// A signed-in identity always has exactly one profile after the first
// successful call. Losing a creation race is treated as success.
func (m *Manager) EnsureProfile(ctx context.Context, viewer Viewer) (domain.Profile, error) {
	var profile domain.Profile
	found, err := m.store.QueryOne(ctx, domain.RelationProfiles, []store.Filter{
		store.Eq("user_id", viewer.ID),
	}, &profile)
	if err != nil {
		return domain.Profile{}, err
	}
	if found {
		return profile, nil
	}

	row := map[string]any{
		"user_id":  viewer.ID,
		"username": NormalizeUsername(viewer.Metadata["username"], viewer.ID),
	}
	if fullName, ok := viewer.Metadata["full_name"].(string); ok && fullName != "" {
		row["full_name"] = fullName
	}

	err = m.store.Insert(ctx, domain.RelationProfiles, row, &profile)
	if err == nil {
		m.logger.Info("Profile created",
			zap.String("userID", viewer.ID),
			zap.String("username", profile.Username),
		)
		return profile, nil
	}
	if !appErrors.IsConflict(err) {
		return domain.Profile{}, err
	}

	// Another session created it first; fetch the winner.
	found, err = m.store.QueryOne(ctx, domain.RelationProfiles, []store.Filter{
		store.Eq("user_id", viewer.ID),
	}, &profile)
	if err != nil {
		return domain.Profile{}, err
	}
	if !found {
		return domain.Profile{}, appErrors.NewInternal("profile vanished after conflict", nil)
	}
	return profile, nil
}

var invalidHandleChars = regexp.MustCompile(`[^a-z0-9_]`)

// NormalizeUsername cleans a requested handle down to lowercase alphanumeric
// and underscore, falling back to a handle derived from the user id when the
// result is too short
func NormalizeUsername(value any, userID string) string {
	fallback := "user_" + shortID(userID)
	s, ok := value.(string)
	if !ok {
		return fallback
	}
	cleaned := invalidHandleChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
	if len(cleaned) < 3 {
		return fallback
	}
	return cleaned
}

func shortID(userID string) string {
	if len(userID) > 8 {
		return userID[:8]
	}
	return userID
}
