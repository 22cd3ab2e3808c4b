package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"edu-consult/internal/domain"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// JWTService emite y valida tokens JWT firmados con HS256.
// No guarda sesiones: la única memoria es el denylist de tokens revocados.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	denylist   TokenDenylist
	now        func() time.Time
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type Claims struct {
	UserID    string      `json:"userId"`
	Role      domain.Role `json:"role,omitempty"`
	TokenType string      `json:"typ"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
	ErrJWTRevoked = errors.New("jwt revoked")
)

func NewJWTService(secret, issuer string, accessTTL, refreshTTL time.Duration) *JWTService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "edu-consult"
	}
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		denylist:   NewMemoryTokenDenylist(),
		now:        time.Now,
	}
}

func NewJWTServiceWithDenylist(secret, issuer string, accessTTL, refreshTTL time.Duration, denylist TokenDenylist) *JWTService {
	svc := NewJWTService(secret, issuer, accessTTL, refreshTTL)
	if denylist != nil {
		svc.denylist = denylist
	}
	return svc
}

// WithClock reemplaza el reloj; pensado para tests de expiración.
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	if now != nil {
		s.now = now
		if d, ok := s.denylist.(interface{ setClock(func() time.Time) }); ok {
			d.setClock(now)
		}
	}
	return s
}

func (s *JWTService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *JWTService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *JWTService) IssueAccessToken(userID string, role domain.Role) (string, error) {
	return s.sign(userID, role, TokenTypeAccess, s.accessTTL)
}

func (s *JWTService) IssueRefreshToken(userID string) (string, error) {
	return s.sign(userID, "", TokenTypeRefresh, s.refreshTTL)
}

func (s *JWTService) GeneratePair(user domain.User) (TokenPair, error) {
	access, err := s.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Verify comprueba firma, algoritmo, emisor y expiración, sin mirar el tipo.
func (s *JWTService) Verify(tokenString string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrJWTInvalid
	}
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) ParseAccessToken(ctx context.Context, accessToken string) (Claims, error) {
	return s.parseTyped(ctx, accessToken, TokenTypeAccess)
}

func (s *JWTService) ParseRefreshToken(ctx context.Context, refreshToken string) (Claims, error) {
	return s.parseTyped(ctx, refreshToken, TokenTypeRefresh)
}

// Revoke deniega el jti hasta que el token caduque.
func (s *JWTService) Revoke(ctx context.Context, claims Claims) error {
	if claims.ID == "" || claims.ExpiresAt == nil {
		return ErrJWTInvalid
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.denylist.Add(ctx, claims.ID, ttl)
}

func (s *JWTService) parseTyped(ctx context.Context, tokenString, tokenType string) (Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenType {
		return Claims{}, ErrJWTInvalid
	}
	if tokenType == TokenTypeAccess && !claims.Role.Valid() {
		return Claims{}, ErrJWTInvalid
	}
	denied, err := s.denylist.Contains(ctx, claims.ID)
	if err != nil {
		return Claims{}, fmt.Errorf("check denylist: %w", err)
	}
	if denied {
		return Claims{}, ErrJWTRevoked
	}
	return claims, nil
}

func (s *JWTService) sign(userID string, role domain.Role, tokenType string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	if strings.TrimSpace(userID) == "" {
		return "", ErrJWTInvalid
	}
	now := s.now().UTC()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	if strings.TrimSpace(claims.ID) == "" {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
