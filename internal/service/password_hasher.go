package service

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const dummyPassword = "timing-equalization-password"

// PasswordHasher ejecuta bcrypt con un máximo de operaciones concurrentes,
// para que ráfagas de login no acaparen todas las CPUs.
type PasswordHasher struct {
	cost      int
	sem       *semaphore.Weighted
	dummyHash []byte
}

func NewPasswordHasher(cost, workers int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, err
	}
	return &PasswordHasher{
		cost:      cost,
		sem:       semaphore.NewWeighted(int64(workers)),
		dummyHash: dummy,
	}, nil
}

func (h *PasswordHasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", &ValidationError{Fields: map[string][]string{"password": {"must be at most 72 bytes"}}}
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare devuelve false, nil cuando la contraseña no coincide.
func (h *PasswordHasher) Compare(ctx context.Context, hash, plain string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		// Nunca se guarda un hash de más de 72 bytes: no puede coincidir.
		return false, nil
	default:
		return false, err
	}
}

// CompareDummy gasta el mismo tiempo que Compare cuando no hay usuario.
func (h *PasswordHasher) CompareDummy(ctx context.Context, plain string) {
	_, _ = h.Compare(ctx, string(h.dummyHash), plain)
}
