package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"edu-consult/internal/domain"
	"edu-consult/internal/repository"
)

// ErrIncorrectPassword se devuelve cuando la contraseña actual no coincide.
var ErrIncorrectPassword = errors.New("incorrect old password")

// UserService cubre las operaciones del usuario autenticado sobre su propio perfil.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
	hasher *PasswordHasher
	now    func() time.Time
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, hasher *PasswordHasher) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger: logger,
		users:  users,
		hasher: hasher,
		now:    time.Now,
	}
}

// UpdateProfileInput usa punteros para distinguir campos ausentes.
type UpdateProfileInput struct {
	FullName    *string `json:"fullName" validate:"omitnil,min=3"`
	Email       *string `json:"email" validate:"omitnil,email"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitnil,min=10"`
}

type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72,maxbytes=72"`
}

func (s *UserService) Me(ctx context.Context, id string) (domain.PublicUser, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (domain.PublicUser, error) {
	if in.FullName != nil {
		v := strings.TrimSpace(*in.FullName)
		in.FullName = &v
	}
	if in.Email != nil {
		v := normalizeEmail(*in.Email)
		in.Email = &v
	}
	if in.PhoneNumber != nil {
		v := strings.TrimSpace(*in.PhoneNumber)
		in.PhoneNumber = &v
	}
	if err := validateStruct(in); err != nil {
		return domain.PublicUser{}, err
	}

	user, err := s.getUser(ctx, id)
	if err != nil {
		return domain.PublicUser{}, err
	}

	if in.Email != nil && *in.Email != user.Email {
		other, err := s.users.GetByEmail(ctx, *in.Email)
		switch {
		case err == nil && other.ID != user.ID:
			return domain.PublicUser{}, ErrDuplicateEmail
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return domain.PublicUser{}, fmt.Errorf("lookup user by email: %w", err)
		}
		user.Email = *in.Email
	}
	if in.FullName != nil {
		user.FullName = *in.FullName
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = *in.PhoneNumber
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PublicUser{}, ErrUserNotFound
		}
		return domain.PublicUser{}, mapDuplicate(err, "save user")
	}
	return user.Public(), nil
}

func (s *UserService) ChangePassword(ctx context.Context, id string, in ChangePasswordInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	user, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, in.OldPassword)
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return ErrIncorrectPassword
	}

	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.Info("password changed", zap.String("user_id", user.ID))
	return nil
}

func (s *UserService) getUser(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user by id: %w", err)
	}
	return user, nil
}
