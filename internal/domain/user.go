package domain

import "time"

// Role es el nivel de permisos de un usuario.
type Role string

const (
	RoleUser     Role = "user"
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleEmployee:
		return true
	}
	return false
}

// User es el registro de identidad persistido por el Credential Store.
// ResetCode y ResetCodeExpiresAt se guardan y se limpian siempre juntos.
type User struct {
	ID                 string     `json:"id" bson:"_id"`
	FullName           string     `json:"fullName" bson:"fullName"`
	Email              string     `json:"email" bson:"email"`
	PasswordHash       string     `json:"-" bson:"password"`
	PhoneNumber        string     `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	Role               Role       `json:"role" bson:"role"`
	ResetCode          string     `json:"-" bson:"resetCode,omitempty"`
	ResetCodeExpiresAt *time.Time `json:"-" bson:"resetCodeExpires,omitempty"`
	CreatedAt          time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// HasPendingReset indica si hay un código de reseteo guardado.
func (u User) HasPendingReset() bool {
	return u.ResetCode != "" && u.ResetCodeExpiresAt != nil
}

// PublicUser es la vista saneada que se devuelve al cliente.
type PublicUser struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		FullName:    u.FullName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
}
