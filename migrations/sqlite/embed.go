// Package migrations embebe las migraciones SQL del estado local de la unidad.
package migrations

import "embed"

// FS contiene las migraciones del estado de la unidad.
//
//go:embed *.sql
var FS embed.FS

// Dir es el directorio dentro de FS donde viven las migraciones.
const Dir = "."
