package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edu-consult/internal/domain"
)

var (
	// ErrNotFound se devuelve cuando ningún registro coincide con la búsqueda o la condición.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate envuelve violaciones de unicidad (email o teléfono).
	ErrDuplicate = errors.New("duplicate key")
)

const (
	FieldEmail = "email"
	FieldPhone = "phoneNumber"
)

// DuplicateError indica qué campo único colisionó.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}

// DuplicateField devuelve el campo de un DuplicateError, o "" si err no lo es.
func DuplicateField(err error) string {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Field
	}
	return ""
}

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Save(ctx context.Context, user domain.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// SetResetCode reemplaza cualquier código previo.
	SetResetCode(ctx context.Context, id, code string, expiresAt time.Time) error
	// ConsumeResetCode aplica el nuevo hash y limpia el código en una sola
	// operación condicional: solo si el código coincide y no expiró en now.
	ConsumeResetCode(ctx context.Context, email, code string, now time.Time, passwordHash string) error
}
