package email

import (
	"fmt"
	"time"
)

// ResetCodeMessage arma asunto y cuerpo del correo con el código de reseteo.
func ResetCodeMessage(code string, expiresAt time.Time) (string, string) {
	subject := "Password reset code"
	body := fmt.Sprintf(
		"Your password reset code is %s.\nIt expires at %s UTC.\nIf you did not request a reset, you can ignore this email.\n",
		code,
		expiresAt.UTC().Format(time.RFC3339),
	)
	return subject, body
}
