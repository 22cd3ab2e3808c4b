package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"edu-consult/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Now().UTC().Truncate(time.Second)}
}

func newTestJWT(clock *fakeClock) *JWTService {
	return NewJWTServiceWithDenylist("secret", "edu-consult", 15*time.Minute, 7*24*time.Hour, NewMemoryTokenDenylist()).
		WithClock(clock.Now)
}

func TestJWTService_IssueAndParseAccess(t *testing.T) {
	svc := newTestJWT(newClock())

	token, err := svc.IssueAccessToken("u1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	claims, err := svc.ParseAccessToken(context.Background(), token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != domain.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time) != 15*time.Minute {
		t.Fatalf("expected 15 minute validity, got %v", claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time))
	}
}

func TestJWTService_RefreshCarriesOnlyUserID(t *testing.T) {
	svc := newTestJWT(newClock())

	token, err := svc.IssueRefreshToken("u1")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	claims, err := svc.ParseRefreshToken(context.Background(), token)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != "" {
		t.Fatalf("unexpected refresh claims: %+v", claims)
	}
	if claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time) != 7*24*time.Hour {
		t.Fatalf("expected 7 day validity")
	}
}

func TestJWTService_AccessExpiresAfter15Minutes(t *testing.T) {
	clock := newClock()
	svc := newTestJWT(clock)

	token, err := svc.IssueAccessToken("u1", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	clock.Advance(14 * time.Minute)
	if _, err := svc.ParseAccessToken(context.Background(), token); err != nil {
		t.Fatalf("expected token valid at 14m, got %v", err)
	}

	clock.Advance(time.Minute + time.Second)
	if _, err := svc.Verify(token); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired after 15m, got %v", err)
	}
}

func TestJWTService_TamperedTokenFails(t *testing.T) {
	svc := newTestJWT(newClock())
	token, err := svc.IssueAccessToken("u1", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 jwt segments")
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	if _, err := svc.Verify(tampered); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for tampered signature, got %v", err)
	}

	other := NewJWTService("other-secret", "edu-consult", 0, 0)
	if _, err := other.Verify(token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for foreign secret, got %v", err)
	}
}

func TestJWTService_RejectsWrongTokenType(t *testing.T) {
	svc := newTestJWT(newClock())
	pair, err := svc.GeneratePair(domain.User{ID: "u1", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	if _, err := svc.ParseRefreshToken(context.Background(), pair.AccessToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected access token rejected as refresh, got %v", err)
	}
	if _, err := svc.ParseAccessToken(context.Background(), pair.RefreshToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected refresh token rejected as access, got %v", err)
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiresIn %d", pair.ExpiresIn)
	}
}

func TestJWTService_RejectsEmptySecret(t *testing.T) {
	svc := NewJWTService("", "edu-consult", 0, 0)
	if _, err := svc.IssueAccessToken("u1", domain.RoleUser); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
	if _, err := svc.Verify("whatever"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
}

func TestJWTService_RejectsWrongIssuerAndAlgorithm(t *testing.T) {
	clock := newClock()
	svc := newTestJWT(clock)
	now := clock.Now()

	claims := Claims{
		UserID:    "u1",
		Role:      domain.RoleUser,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "j1",
			Issuer:    "other-issuer",
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.Verify(signed); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for wrong issuer, got %v", err)
	}

	claims.Issuer = "edu-consult"
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.Verify(hs512); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for unexpected algorithm, got %v", err)
	}
}

func TestJWTService_RevokeDeniesToken(t *testing.T) {
	svc := newTestJWT(newClock())
	ctx := context.Background()
	token, err := svc.IssueAccessToken("u1", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	claims, err := svc.ParseAccessToken(ctx, token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}

	if err := svc.Revoke(ctx, claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.ParseAccessToken(ctx, token); !errors.Is(err, ErrJWTRevoked) {
		t.Fatalf("expected ErrJWTRevoked, got %v", err)
	}
}

func TestJWTService_MemoryDenylistFollowsServiceClock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)}
	denylist := NewMemoryTokenDenylist()
	svc := NewJWTServiceWithDenylist("secret", "edu-consult", 15*time.Minute, time.Hour, denylist).WithClock(clock.Now)
	ctx := context.Background()

	revoke := func() Claims {
		token, err := svc.IssueAccessToken("u1", domain.RoleUser)
		if err != nil {
			t.Fatalf("issue access: %v", err)
		}
		claims, err := svc.ParseAccessToken(ctx, token)
		if err != nil {
			t.Fatalf("parse access: %v", err)
		}
		if err := svc.Revoke(ctx, claims); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		return claims
	}

	first := revoke()
	mem := denylist.(*memoryTokenDenylist)
	if exp := mem.items[first.ID]; !exp.Equal(first.ExpiresAt.Time) {
		t.Fatalf("expected denylist entry to expire with the token at %v, got %v", first.ExpiresAt.Time, exp)
	}

	clock.Advance(16 * time.Minute)
	revoke()
	if n := mem.size(); n != 1 {
		t.Fatalf("expected expired jti swept, got %d entries", n)
	}
}

type failingDenylist struct{}

func (failingDenylist) Add(context.Context, string, time.Duration) error {
	return errors.New("redis down")
}

func (failingDenylist) Contains(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestJWTService_DenylistFailureRejects(t *testing.T) {
	svc := NewJWTServiceWithDenylist("secret", "edu-consult", 0, 0, failingDenylist{})
	token, err := svc.IssueAccessToken("u1", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, err := svc.ParseAccessToken(context.Background(), token); err == nil {
		t.Fatalf("expected token rejected when denylist is unavailable")
	}
}
