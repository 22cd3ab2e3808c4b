package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"edu-consult/internal/domain"
	"edu-consult/internal/email"
	"edu-consult/internal/repository"
)

var (
	ErrDuplicateEmail       = errors.New("email is already registered")
	ErrDuplicatePhone       = errors.New("phone number is already registered")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired reset code")
	ErrRateLimited          = errors.New("rate limited")
	ErrMissingToken         = errors.New("missing token")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
)

// Notifier entrega correos sin bloquear el flujo que lo invoca.
type Notifier interface {
	Dispatch(to, subject, body string)
}

// AuthOptions agrupa los parámetros ajustables de los flujos de autenticación.
type AuthOptions struct {
	OTPLength int
	OTPTTL    time.Duration
	// HideUnknownEmail hace que forgot-password no revele si el email existe.
	HideUnknownEmail bool
}

// AuthService orquesta registro, login, logout, reseteo de contraseña y refresh.
type AuthService struct {
	logger     *zap.Logger
	users      repository.UserRepository
	tokens     *JWTService
	hasher     *PasswordHasher
	notifier   Notifier
	otpLimiter OTPRateLimiter
	opts       AuthOptions
	now        func() time.Time
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	tokens *JWTService,
	hasher *PasswordHasher,
	notifier Notifier,
	otpLimiter OTPRateLimiter,
	opts AuthOptions,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OTPLength <= 0 {
		opts.OTPLength = DefaultOTPLength
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = DefaultOTPTTL
	}
	if otpLimiter == nil {
		otpLimiter = NewOTPRateLimiter(opts.OTPTTL, 3)
	}
	return &AuthService{
		logger:     logger,
		users:      users,
		tokens:     tokens,
		hasher:     hasher,
		notifier:   notifier,
		otpLimiter: otpLimiter,
		opts:       opts,
		now:        time.Now,
	}
}

// WithClock reemplaza el reloj usado para expiración de códigos.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

type RegisterInput struct {
	FullName        string `json:"fullName" validate:"required,min=3"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72,maxbytes=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
	PhoneNumber     string `json:"phoneNumber" validate:"required,min=10"`
	// Role se acepta en el body pero se ignora: todo registro es "user".
	Role string `json:"role"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordInput struct {
	Email     string `json:"email" validate:"required,email"`
	ResetCode string `json:"resetCode" validate:"required"`
	Password  string `json:"password" validate:"required,min=8,max=72,maxbytes=72"`
}

// AuthResult es la respuesta de registro y login.
type AuthResult struct {
	User   domain.PublicUser `json:"user"`
	Tokens TokenPair         `json:"tokens"`
}

// RefreshResult contiene solo el nuevo access token; el refresh token no rota.
type RefreshResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := validateStruct(in); err != nil {
		return AuthResult{}, err
	}

	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return AuthResult{}, ErrDuplicateEmail
	case !errors.Is(err, repository.ErrNotFound):
		return AuthResult{}, fmt.Errorf("lookup user by email: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	if in.Role != "" && in.Role != string(domain.RoleUser) {
		s.logger.Warn("register requested elevated role", zap.String("email", in.Email), zap.String("role", in.Role))
	}

	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		PhoneNumber:  in.PhoneNumber,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return AuthResult{}, mapDuplicate(err, "create user")
	}

	tokens, err := s.tokens.GeneratePair(user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	return AuthResult{User: user.Public(), Tokens: tokens}, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.CompareDummy(ctx, in.Password)
			return AuthResult{}, ErrUserNotFound
		}
		return AuthResult{}, fmt.Errorf("lookup user by email: %w", err)
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	tokens, err := s.tokens.GeneratePair(user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	return AuthResult{User: user.Public(), Tokens: tokens}, nil
}

// Logout revoca los tokens presentados. Nunca falla: el cliente descarta
// los tokens en cualquier caso.
func (s *AuthService) Logout(ctx context.Context, access Claims, refreshToken string) {
	if access.ID != "" {
		if err := s.tokens.Revoke(ctx, access); err != nil {
			s.logger.Warn("revoke access token failed", zap.Error(err), zap.String("user_id", access.UserID))
		}
	}
	if strings.TrimSpace(refreshToken) == "" {
		return
	}
	claims, err := s.tokens.ParseRefreshToken(ctx, refreshToken)
	if err != nil {
		return
	}
	if access.UserID != "" && claims.UserID != access.UserID {
		s.logger.Warn("logout refresh token belongs to another user", zap.String("user_id", access.UserID))
		return
	}
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		s.logger.Warn("revoke refresh token failed", zap.Error(err), zap.String("user_id", claims.UserID))
	}
}

func (s *AuthService) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return err
	}
	if !s.otpLimiter.Allow(ctx, in.Email) {
		return ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if s.opts.HideUnknownEmail {
				s.logger.Info("forgot password for unknown email")
				return nil
			}
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user by email: %w", err)
	}

	code, err := GenerateOTP(s.opts.OTPLength)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	expiresAt := ExpiryFromNow(s.now(), s.opts.OTPTTL)
	if err := s.users.SetResetCode(ctx, user.ID, code, expiresAt); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	if s.notifier != nil {
		subject, body := email.ResetCodeMessage(code, expiresAt)
		s.notifier.Dispatch(user.Email, subject, body)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.Email = normalizeEmail(in.Email)
	in.ResetCode = strings.TrimSpace(in.ResetCode)
	if err := validateStruct(in); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("lookup user by email: %w", err)
	}
	now := s.now().UTC()
	if !OTPMatches(user, in.ResetCode, now) {
		return ErrInvalidOrExpiredCode
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	// Otra solicitud pudo reemplazar o consumir el código mientras se hasheaba.
	if err := s.users.ConsumeResetCode(ctx, in.Email, in.ResetCode, now, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("consume reset code: %w", err)
	}
	return nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return RefreshResult{}, ErrMissingToken
	}
	claims, err := s.tokens.ParseRefreshToken(ctx, refreshToken)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return RefreshResult{}, ErrUserNotFound
		}
		return RefreshResult{}, fmt.Errorf("lookup user by id: %w", err)
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("issue access token: %w", err)
	}
	return RefreshResult{
		AccessToken: access,
		ExpiresIn:   int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func mapDuplicate(err error, op string) error {
	switch repository.DuplicateField(err) {
	case repository.FieldEmail:
		return ErrDuplicateEmail
	case repository.FieldPhone:
		return ErrDuplicatePhone
	}
	return fmt.Errorf("%s: %w", op, err)
}
