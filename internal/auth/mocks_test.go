package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// In-memory fakes shared by the tests in this package.

type mockUserRepo struct {
	users map[string]*User // by id
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*User)}
}

func (m *mockUserRepo) Create(ctx context.Context, id, email, passwordHash string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return nil, ErrEmailTaken
		}
	}
	user := &User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.users[id] = user
	return user, nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copy := *user
	return &copy, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockUserRepo) SetEmailVerified(ctx context.Context, id string) error {
	if u, ok := m.users[id]; ok {
		u.EmailVerified = true
	}
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

type mockSessionStore struct {
	sessions map[string]*Session // by id
	nextID   int
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]*Session)}
}

func (m *mockSessionStore) Create(ctx context.Context, userID string) (*Session, error) {
	m.nextID++
	session := &Session{
		ID:        fmt.Sprintf("session-%d", m.nextID),
		UserID:    userID,
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
		Fresh:     true,
		CreatedAt: time.Now(),
	}
	m.sessions[session.ID] = session
	return session, nil
}

func (m *mockSessionStore) Delete(ctx context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	return nil
}

func (m *mockSessionStore) InvalidateUser(ctx context.Context, userID string) error {
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *mockSessionStore) countForUser(userID string) int {
	n := 0
	for _, s := range m.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

type mockCodeRepo struct {
	codes  map[string]*VerificationCode // by user id
	nextID int64
}

func newMockCodeRepo() *mockCodeRepo {
	return &mockCodeRepo{codes: make(map[string]*VerificationCode)}
}

func (m *mockCodeRepo) Replace(ctx context.Context, userID, email, code string, expiresAt time.Time) (*VerificationCode, error) {
	m.nextID++
	vc := &VerificationCode{
		ID:        m.nextID,
		UserID:    userID,
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
	}
	m.codes[userID] = vc
	return vc, nil
}

func (m *mockCodeRepo) GetByUserID(ctx context.Context, userID string) (*VerificationCode, error) {
	vc, ok := m.codes[userID]
	if !ok {
		return nil, nil
	}
	copy := *vc
	return &copy, nil
}

func (m *mockCodeRepo) DeleteByID(ctx context.Context, id int64) error {
	for userID, vc := range m.codes {
		if vc.ID == id {
			delete(m.codes, userID)
		}
	}
	return nil
}

type mockResetRepo struct {
	tokens map[string]*ResetToken // by token hash
}

func newMockResetRepo() *mockResetRepo {
	return &mockResetRepo{tokens: make(map[string]*ResetToken)}
}

func (m *mockResetRepo) Replace(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*ResetToken, error) {
	for hash, rt := range m.tokens {
		if rt.UserID == userID {
			delete(m.tokens, hash)
		}
	}
	rt := &ResetToken{
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	m.tokens[tokenHash] = rt
	return rt, nil
}

func (m *mockResetRepo) GetByHash(ctx context.Context, tokenHash string) (*ResetToken, error) {
	rt, ok := m.tokens[tokenHash]
	if !ok {
		return nil, nil
	}
	copy := *rt
	return &copy, nil
}

func (m *mockResetRepo) DeleteByHash(ctx context.Context, tokenHash string) error {
	delete(m.tokens, tokenHash)
	return nil
}

type sentEmail struct {
	To     string
	Code   string
	Link   string
}

type mockEmailSender struct {
	sent    []sentEmail
	failAll bool
}

func (m *mockEmailSender) SendVerificationCode(ctx context.Context, to, code string) error {
	if m.failAll {
		return fmt.Errorf("smtp unreachable")
	}
	m.sent = append(m.sent, sentEmail{To: to, Code: code})
	return nil
}

func (m *mockEmailSender) SendPasswordReset(ctx context.Context, to, resetLink string) error {
	if m.failAll {
		return fmt.Errorf("smtp unreachable")
	}
	m.sent = append(m.sent, sentEmail{To: to, Link: resetLink})
	return nil
}

// mockCookieWriter mimics the session store's cookie descriptors for
// handler tests.
type mockCookieWriter struct{}

func (mockCookieWriter) Cookie(session *Session) *http.Cookie {
	return &http.Cookie{
		Name:     "transit_session",
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (mockCookieWriter) BlankCookie() *http.Cookie {
	return &http.Cookie{
		Name:     "transit_session",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
