package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/citytransit/backend/internal/auth"
	"github.com/citytransit/backend/internal/sessions"
)

type memSessionRepo struct {
	sessions map[string]*auth.Session
}

func (m *memSessionRepo) Create(ctx context.Context, id, userID string, expiresAt time.Time) (*auth.Session, error) {
	session := &auth.Session{ID: id, UserID: userID, ExpiresAt: expiresAt}
	m.sessions[id] = session
	copy := *session
	return &copy, nil
}

func (m *memSessionRepo) Get(ctx context.Context, id string) (*auth.Session, error) {
	session, ok := m.sessions[id]
	if !ok || !time.Now().Before(session.ExpiresAt) {
		return nil, nil
	}
	copy := *session
	return &copy, nil
}

func (m *memSessionRepo) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memSessionRepo) DeleteExpired(ctx context.Context) error { return nil }

type memUserRepo struct {
	users map[string]*auth.User
}

func (m *memUserRepo) Create(ctx context.Context, id, email, passwordHash string) (*auth.User, error) {
	user := &auth.User{ID: id, Email: email, PasswordHash: passwordHash}
	m.users[id] = user
	return user, nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id string) (*auth.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	copy := *user
	return &copy, nil
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUserRepo) SetEmailVerified(ctx context.Context, id string) error { return nil }

func (m *memUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error { return nil }

type gateFixture struct {
	store    *sessions.Store
	repo     *memSessionRepo
	handler  http.Handler
	lastUser *auth.User
	lastSess *auth.Session
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	repo := &memSessionRepo{sessions: make(map[string]*auth.Session)}
	users := &memUserRepo{users: map[string]*auth.User{
		"user-1": {ID: "user-1", Email: "ada@example.com"},
	}}
	store := sessions.NewStore(repo, users, "transit_session", 30*24*time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &gateFixture{store: store, repo: repo}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lastUser, _ = auth.UserFrom(r.Context())
		f.lastSess, _ = auth.SessionFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	f.handler = Session(store, logger)(inner)
	return f
}

func (f *gateFixture) seedSession(id string, expiresAt time.Time) {
	f.repo.sessions[id] = &auth.Session{ID: id, UserID: "user-1", ExpiresAt: expiresAt}
}

func (f *gateFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	f.lastUser, f.lastSess = nil, nil
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestSessionGateAuthenticates(t *testing.T) {
	f := newGateFixture(t)
	f.seedSession("sess-1", time.Now().Add(30*24*time.Hour))

	req := httptest.NewRequest("GET", "/user/me", nil)
	req.Header.Set("Cookie", "transit_session=sess-1")

	f.serve(req)

	if f.lastUser == nil || f.lastUser.ID != "user-1" {
		t.Errorf("user = %+v, want user-1", f.lastUser)
	}
	if f.lastSess == nil || f.lastSess.ID != "sess-1" {
		t.Errorf("session = %+v, want sess-1", f.lastSess)
	}
}

func TestSessionGateCookieParsing(t *testing.T) {
	f := newGateFixture(t)
	f.seedSession("sess-1", time.Now().Add(30*24*time.Hour))

	tests := []struct {
		name   string
		cookie string
		auth   bool
	}{
		{"only cookie", "transit_session=sess-1", true},
		{"among other cookies", "theme=dark; transit_session=sess-1; lang=en", true},
		{"with whitespace", "theme=dark;  transit_session=sess-1", true},
		{"absent", "theme=dark; lang=en", false},
		{"empty header", "", false},
		{"name is a prefix of another cookie", "transit_session_old=sess-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.cookie != "" {
				req.Header.Set("Cookie", tt.cookie)
			}
			f.serve(req)
			if got := f.lastUser != nil; got != tt.auth {
				t.Errorf("authenticated = %v, want %v", got, tt.auth)
			}
		})
	}
}

func TestSessionGateOriginCheck(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		origin    string
		forwarded string
		host      string
		auth      bool
	}{
		{"GET needs no origin", "GET", "", "", "app.example.com", true},
		{"POST with matching origin", "POST", "https://app.example.com", "", "app.example.com", true},
		{"POST without origin", "POST", "", "", "app.example.com", false},
		{"POST with foreign origin", "POST", "https://evil.example.net", "", "app.example.com", false},
		{"POST matching forwarded host", "POST", "https://public.example.com", "public.example.com", "internal:8080", true},
		{"POST with unparseable origin", "POST", "://bad", "", "app.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGateFixture(t)
			f.seedSession("sess-1", time.Now().Add(30*24*time.Hour))

			req := httptest.NewRequest(tt.method, "http://"+tt.host+"/user/email-verification", nil)
			req.Host = tt.host
			req.Header.Set("Cookie", "transit_session=sess-1")
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-Host", tt.forwarded)
			}

			f.serve(req)
			if got := f.lastUser != nil; got != tt.auth {
				t.Errorf("authenticated = %v, want %v", got, tt.auth)
			}
		})
	}
}

func TestSessionGateClearsDeadCookie(t *testing.T) {
	f := newGateFixture(t)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", "transit_session=no-such-session")

	rec := f.serve(req)

	if f.lastUser != nil {
		t.Error("request with a dead session must stay unauthenticated")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Errorf("expected a clearing Set-Cookie, got %+v", cookies)
	}
}

func TestSessionGateResetsRotatedCookie(t *testing.T) {
	f := newGateFixture(t)
	// Old enough to trigger rotation on validation.
	f.seedSession("aging", time.Now().Add(24*time.Hour))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", "transit_session=aging")

	rec := f.serve(req)

	if f.lastSess == nil {
		t.Fatal("expected an authenticated request")
	}
	if f.lastSess.ID == "aging" {
		t.Fatal("session was not rotated")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != f.lastSess.ID {
		t.Errorf("rotated session id not re-set on the response, cookies = %+v", cookies)
	}
}

func TestRequireAuth(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := RequireAuth(inner)

	t.Run("without identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, httptest.NewRequest("GET", "/user/me", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("401 must have an empty body, got %q", rec.Body.String())
		}
	})

	t.Run("with identity", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/user/me", nil)
		ctx := auth.WithIdentity(req.Context(), &auth.User{ID: "user-1"}, &auth.Session{ID: "sess-1"})
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req.WithContext(ctx))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}
