package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"edu-consult/internal/domain"
	"edu-consult/internal/repository"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	usersByPhone map[string]string
	err          error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
		usersByPhone: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.usersByEmail[user.Email]; ok {
		return &repository.DuplicateError{Field: repository.FieldEmail}
	}
	if user.PhoneNumber != "" {
		if _, ok := m.usersByPhone[user.PhoneNumber]; ok {
			return &repository.DuplicateError{Field: repository.FieldPhone}
		}
		m.usersByPhone[user.PhoneNumber] = user.ID
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.User{}, m.err
	}
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	id, ok := m.usersByEmail[email]
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) Save(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.usersByID[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if id, ok := m.usersByEmail[user.Email]; ok && id != user.ID {
		return &repository.DuplicateError{Field: repository.FieldEmail}
	}
	if id, ok := m.usersByPhone[user.PhoneNumber]; ok && user.PhoneNumber != "" && id != user.ID {
		return &repository.DuplicateError{Field: repository.FieldPhone}
	}
	delete(m.usersByEmail, prev.Email)
	delete(m.usersByPhone, prev.PhoneNumber)
	m.usersByEmail[user.Email] = user.ID
	if user.PhoneNumber != "" {
		m.usersByPhone[user.PhoneNumber] = user.ID
	}
	user.ResetCode = prev.ResetCode
	user.ResetCodeExpiresAt = prev.ResetCodeExpiresAt
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) SetResetCode(_ context.Context, id, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.ResetCode = code
	user.ResetCodeExpiresAt = &expiresAt
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) ConsumeResetCode(_ context.Context, email, code string, now time.Time, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByEmail[email]
	if !ok {
		return repository.ErrNotFound
	}
	user := m.usersByID[id]
	if user.ResetCode != code || user.ResetCodeExpiresAt == nil || !user.ResetCodeExpiresAt.After(now) {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.ResetCode = ""
	user.ResetCodeExpiresAt = nil
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) get(email string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usersByID[m.usersByEmail[email]]
}

type sentMail struct {
	to, subject, body string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *mockNotifier) Dispatch(to, subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{to: to, subject: subject, body: body})
}

func (n *mockNotifier) last() (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMail{}, false
	}
	return n.sent[len(n.sent)-1], true
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(_ context.Context, _ string) bool {
	return m.allow
}

func newTestHasher() *PasswordHasher {
	h, err := NewPasswordHasher(bcrypt.MinCost, 4)
	if err != nil {
		panic(err)
	}
	return h
}

type authFixture struct {
	repo     *mockUserRepo
	notifier *mockNotifier
	jwt      *JWTService
	clock    *fakeClock
	svc      *AuthService
}

func newAuthFixture(opts AuthOptions, limiter OTPRateLimiter) *authFixture {
	clock := newClock()
	repo := newMockUserRepo()
	notifier := &mockNotifier{}
	jwtSvc := newTestJWT(clock)
	svc := NewAuthService(nil, repo, jwtSvc, newTestHasher(), notifier, limiter, opts).WithClock(clock.Now)
	return &authFixture{repo: repo, notifier: notifier, jwt: jwtSvc, clock: clock, svc: svc}
}
