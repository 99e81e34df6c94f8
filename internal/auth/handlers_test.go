package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type handlerFixture struct {
	*serviceFixture
	mux *http.ServeMux
}

func newHandlerFixture() *handlerFixture {
	f := newServiceFixture()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(f.service, mockCookieWriter{}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /user/signup", handler.Signup)
	mux.HandleFunc("POST /user/login", handler.Login)
	mux.HandleFunc("POST /user/logout", handler.Logout)
	mux.HandleFunc("POST /user/email-verification", handler.VerifyEmail)
	mux.HandleFunc("POST /user/reset-password", handler.RequestPasswordReset)
	mux.HandleFunc("GET /user/reset-password/{token}", handler.ResetPassword)
	mux.HandleFunc("GET /user/me", handler.Me)

	return &handlerFixture{serviceFixture: f, mux: mux}
}

func (f *handlerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	return f.doAs(nil, nil, method, path, body)
}

// doAs serves a request with an identity already attached, standing in
// for the session middleware.
func (f *handlerFixture) doAs(user *User, session *Session, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != nil {
		req = req.WithContext(WithIdentity(req.Context(), user, session))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "transit_session" {
			return c
		}
	}
	t.Fatal("no transit_session cookie in response")
	return nil
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
	}
	return resp.Message
}

func TestSignupHandler(t *testing.T) {
	t.Run("success redirects with session cookie", func(t *testing.T) {
		f := newHandlerFixture()

		rec := f.do("POST", "/user/signup", `{"email":"ada@example.com","password":"correct horse"}`)

		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/" {
			t.Errorf("Location = %q, want /", loc)
		}
		cookie := sessionCookie(t, rec)
		if cookie.Value == "" {
			t.Error("session cookie is empty")
		}
		if !cookie.HttpOnly {
			t.Error("session cookie must be HttpOnly")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newHandlerFixture()
		f.do("POST", "/user/signup", `{"email":"ada@example.com","password":"correct horse"}`)

		rec := f.do("POST", "/user/signup", `{"email":"ada@example.com","password":"other password"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if msg := decodeMessage(t, rec); msg != "Email already used" {
			t.Errorf("message = %q, want %q", msg, "Email already used")
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newHandlerFixture()

		rec := f.do("POST", "/user/signup", `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestLoginHandler(t *testing.T) {
	f := newHandlerFixture()
	f.do("POST", "/user/signup", `{"email":"ada@example.com","password":"correct horse"}`)

	t.Run("success", func(t *testing.T) {
		rec := f.do("POST", "/user/login", `{"email":"ada@example.com","password":"correct horse"}`)

		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		if sessionCookie(t, rec).Value == "" {
			t.Error("session cookie is empty")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := f.do("POST", "/user/login", `{"email":"ada@example.com","password":"wrong horse"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if msg := decodeMessage(t, rec); msg != "Invalid email or password" {
			t.Errorf("message = %q, want %q", msg, "Invalid email or password")
		}
	})

	t.Run("unknown email gets the same message", func(t *testing.T) {
		rec := f.do("POST", "/user/login", `{"email":"nobody@example.com","password":"correct horse"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if msg := decodeMessage(t, rec); msg != "Invalid email or password" {
			t.Errorf("message = %q, want %q", msg, "Invalid email or password")
		}
	})
}

func TestVerifyEmailHandler(t *testing.T) {
	ctx := context.Background()

	signup := func(t *testing.T, f *handlerFixture) (*User, *Session, string) {
		t.Helper()
		rec := f.do("POST", "/user/signup", `{"email":"ada@example.com","password":"correct horse"}`)
		if rec.Code != http.StatusFound {
			t.Fatalf("signup status = %d", rec.Code)
		}
		sessionID := sessionCookie(t, rec).Value
		user, _ := f.users.GetByEmail(ctx, "ada@example.com")
		session := f.sessions.sessions[sessionID]
		code, _ := f.codes.GetByUserID(ctx, user.ID)
		return user, session, code.Code
	}

	t.Run("without session", func(t *testing.T) {
		f := newHandlerFixture()

		rec := f.do("POST", "/user/email-verification", `{"code":"12345678"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid code rotates the session", func(t *testing.T) {
		f := newHandlerFixture()
		user, session, code := signup(t, f)

		rec := f.doAs(user, session, "POST", "/user/email-verification", `{"code":"`+code+`"}`)

		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		newCookie := sessionCookie(t, rec)
		if newCookie.Value == session.ID {
			t.Error("session id unchanged after verification")
		}
		if _, ok := f.sessions.sessions[session.ID]; ok {
			t.Error("pre-verification session still valid")
		}
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newHandlerFixture()
		user, session, _ := signup(t, f)

		rec := f.doAs(user, session, "POST", "/user/email-verification", `{"code":"00000001"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if msg := decodeMessage(t, rec); msg != "Invalid or expired code" {
			t.Errorf("message = %q, want %q", msg, "Invalid or expired code")
		}
	})
}

func TestPasswordResetHandlers(t *testing.T) {
	ctx := context.Background()

	setupVerified := func(t *testing.T) (*handlerFixture, *User) {
		t.Helper()
		f := newHandlerFixture()
		f.do("POST", "/user/signup", `{"email":"ada@example.com","password":"correct horse"}`)
		user, _ := f.users.GetByEmail(ctx, "ada@example.com")
		code, _ := f.codes.GetByUserID(ctx, user.ID)
		if _, err := f.service.VerifyEmail(ctx, user, code.Code); err != nil {
			t.Fatalf("VerifyEmail() error = %v", err)
		}
		return f, user
	}

	requestToken := func(t *testing.T, f *handlerFixture) string {
		t.Helper()
		f.emails.sent = nil
		rec := f.do("POST", "/user/reset-password", `{"email":"ada@example.com"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("reset request status = %d, want 200", rec.Code)
		}
		if len(f.emails.sent) != 1 {
			t.Fatalf("sent %d emails, want 1", len(f.emails.sent))
		}
		link := f.emails.sent[0].Link
		return link[strings.LastIndex(link, "/")+1:]
	}

	t.Run("request returns 200 for unknown email", func(t *testing.T) {
		f := newHandlerFixture()

		rec := f.do("POST", "/user/reset-password", `{"email":"nobody@example.com"}`)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("reset with valid token", func(t *testing.T) {
		f, user := setupVerified(t)
		token := requestToken(t, f)

		rec := f.do("GET", "/user/reset-password/"+token, `{"password":"brand new pass"}`)

		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		if sessionCookie(t, rec).Value == "" {
			t.Error("no session cookie after reset")
		}
		if f.sessions.countForUser(user.ID) != 1 {
			t.Errorf("sessions for user = %d, want 1", f.sessions.countForUser(user.ID))
		}
	})

	t.Run("reused token", func(t *testing.T) {
		f, _ := setupVerified(t)
		token := requestToken(t, f)

		f.do("GET", "/user/reset-password/"+token, `{"password":"brand new pass"}`)
		rec := f.do("GET", "/user/reset-password/"+token, `{"password":"yet another pass"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if msg := decodeMessage(t, rec); msg != "Invalid or expired token" {
			t.Errorf("message = %q, want %q", msg, "Invalid or expired token")
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newHandlerFixture()

		rec := f.do("GET", "/user/reset-password/bogus-token", `{"password":"brand new pass"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestLogoutHandler(t *testing.T) {
	ctx := context.Background()
	f := newHandlerFixture()
	f.do("POST", "/user/signup", `{"email":"ada@example.com","password":"correct horse"}`)
	user, _ := f.users.GetByEmail(ctx, "ada@example.com")

	var session *Session
	for _, s := range f.sessions.sessions {
		session = s
	}

	rec := f.doAs(user, session, "POST", "/user/logout", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	cookie := sessionCookie(t, rec)
	if cookie.Value != "" || cookie.MaxAge != -1 {
		t.Errorf("expected a clearing cookie, got value=%q maxAge=%d", cookie.Value, cookie.MaxAge)
	}
	if _, ok := f.sessions.sessions[session.ID]; ok {
		t.Error("session still present after logout")
	}
}

func TestMeHandler(t *testing.T) {
	f := newHandlerFixture()
	user := &User{ID: "user-1", Email: "ada@example.com", EmailVerified: true}

	rec := f.doAs(user, &Session{ID: "session-1", UserID: "user-1"}, "GET", "/user/me", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.ID != "user-1" || resp.Email != "ada@example.com" || !resp.EmailVerified {
		t.Errorf("unexpected body: %+v", resp)
	}
}
