package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"edu-consult/internal/domain"
	"edu-consult/internal/metrics"
	"edu-consult/internal/repository"
	"edu-consult/internal/service"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[string]domain.User), byEmail: make(map[string]string)}
}

func (m *memUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[user.Email]; ok {
		return &repository.DuplicateError{Field: repository.FieldEmail}
	}
	for _, u := range m.byID {
		if user.PhoneNumber != "" && u.PhoneNumber == user.PhoneNumber {
			return &repository.DuplicateError{Field: repository.FieldPhone}
		}
	}
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	id, ok := m.byEmail[email]
	m.mu.Unlock()
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *memUserRepo) Save(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.byID[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if id, ok := m.byEmail[user.Email]; ok && id != user.ID {
		return &repository.DuplicateError{Field: repository.FieldEmail}
	}
	delete(m.byEmail, prev.Email)
	m.byEmail[user.Email] = user.ID
	m.byID[user.ID] = user
	return nil
}

func (m *memUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.byID[id] = u
	return nil
}

func (m *memUserRepo) SetResetCode(_ context.Context, id, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.ResetCode = code
	u.ResetCodeExpiresAt = &expiresAt
	m.byID[id] = u
	return nil
}

func (m *memUserRepo) ConsumeResetCode(_ context.Context, email, code string, now time.Time, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[m.byEmail[email]]
	if !ok || u.ResetCode != code || u.ResetCodeExpiresAt == nil || !u.ResetCodeExpiresAt.After(now) {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetCode = ""
	u.ResetCodeExpiresAt = nil
	m.byID[u.ID] = u
	return nil
}

func (m *memUserRepo) get(email string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[m.byEmail[email]]
}

func (m *memUserRepo) delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byEmail, m.byID[id].Email)
	delete(m.byID, id)
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *captureNotifier) Dispatch(to, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, to)
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) bool { return false }

type serverOptions struct {
	otpLimiter  service.OTPRateLimiter
	authLimiter *IPRateLimiter
	cookies     CookieOptions
}

type testServer struct {
	router   *gin.Engine
	repo     *memUserRepo
	jwt      *service.JWTService
	notifier *captureNotifier
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemUserRepo()
	notifier := &captureNotifier{}
	jwtSvc := service.NewJWTServiceWithDenylist("secret", "edu-consult", 15*time.Minute, 7*24*time.Hour, service.NewMemoryTokenDenylist())
	hasher, err := service.NewPasswordHasher(bcrypt.MinCost, 4)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	m := metrics.New()
	authSvc := service.NewAuthService(zap.NewNop(), repo, jwtSvc, hasher, notifier, opts.otpLimiter, service.AuthOptions{})
	userSvc := service.NewUserService(zap.NewNop(), repo, hasher)

	router := NewRouter(RouterDeps{
		Logger:         zap.NewNop(),
		Auth:           NewAuthHandler(zap.NewNop(), authSvc, jwtSvc, m, opts.cookies),
		Users:          NewUserHandler(zap.NewNop(), userSvc, m),
		JWT:            jwtSvc,
		Metrics:        m,
		RequestTimeout: 5 * time.Second,
		AuthLimiter:    opts.authLimiter,
	})
	return &testServer{router: router, repo: repo, jwt: jwtSvc, notifier: notifier, metrics: m}
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) requestOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func performRequest(r http.Handler, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
	Data    json.RawMessage     `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

type authData struct {
	User   domain.PublicUser `json:"user"`
	Tokens service.TokenPair `json:"tokens"`
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) authData {
	t.Helper()
	env := decodeEnvelope(t, rec)
	var data authData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode auth data: %v", err)
	}
	return data
}

func registerBody(email, phone string) map[string]string {
	return map[string]string{
		"fullName":    "Alice Doe",
		"email":       email,
		"password":    "password1",
		"phoneNumber": phone,
	}
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
