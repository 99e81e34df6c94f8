package sessions

import (
	"context"
	"net/http"
	"time"

	"github.com/citytransit/backend/internal/auth"
)

// Store manages the session lifecycle: creation, validation with silent
// rotation, and bulk invalidation. The session id doubles as the cookie
// value, so the store also produces the cookie descriptors.
type Store struct {
	sessions   auth.SessionRepository
	users      auth.UserRepository
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewStore creates a new session store. Sessions live for ttl; once less
// than half of that remains, the next validation rotates the session to a
// new id.
func NewStore(sessions auth.SessionRepository, users auth.UserRepository, cookieName string, ttl time.Duration, secure bool) *Store {
	return &Store{
		sessions:   sessions,
		users:      users,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Create starts a new session for the user. The returned session is
// fresh, meaning its cookie must be written to the response.
func (s *Store) Create(ctx context.Context, userID string) (*auth.Session, error) {
	id, err := auth.NewSessionID()
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.Create(ctx, id, userID, time.Now().Add(s.ttl))
	if err != nil {
		return nil, err
	}
	session.Fresh = true
	return session, nil
}

// Validate resolves a raw session id to its session and owning user.
// A miss, an expired session, or an orphaned session all yield
// (nil, nil, nil); the caller should treat the request as unauthenticated
// and clear the cookie. When the session has passed the midpoint of its
// lifetime it is rotated: the old row is deleted, a replacement with a
// new id is created, and the returned session is marked fresh so the
// caller re-sets the cookie.
func (s *Store) Validate(ctx context.Context, sessionID string) (*auth.Session, *auth.User, error) {
	if sessionID == "" {
		return nil, nil, nil
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil || !time.Now().Before(session.ExpiresAt) {
		return nil, nil, nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if err == auth.ErrUserNotFound {
			_ = s.sessions.Delete(ctx, session.ID)
			return nil, nil, nil
		}
		return nil, nil, err
	}

	if time.Until(session.ExpiresAt) < s.ttl/2 {
		rotated, err := s.rotate(ctx, session)
		if err != nil {
			// Rotation is best-effort; the old session is still valid.
			return session, user, nil
		}
		return rotated, user, nil
	}

	return session, user, nil
}

func (s *Store) rotate(ctx context.Context, old *auth.Session) (*auth.Session, error) {
	replacement, err := s.Create(ctx, old.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Delete(ctx, old.ID); err != nil {
		return nil, err
	}
	return replacement, nil
}

// InvalidateUser deletes every session owned by the user, forcing
// re-authentication on all devices.
func (s *Store) InvalidateUser(ctx context.Context, userID string) error {
	return s.sessions.DeleteByUserID(ctx, userID)
}

// Delete removes a single session (logout).
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// CleanupExpired removes expired sessions from the database.
func (s *Store) CleanupExpired(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx)
}

// CookieName returns the name the session cookie is issued under.
func (s *Store) CookieName() string {
	return s.cookieName
}

// Cookie returns the cookie descriptor carrying the session id.
func (s *Store) Cookie(session *auth.Session) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// BlankCookie returns a cookie descriptor that clears the session cookie
// on the client.
func (s *Store) BlankCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
