// Package migrations contiene el esquema SQL del Credential Store en Postgres.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
