package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HOOK
// =================================================================================

// RunID crea un campo para el ID de la ejecución del hook.
func RunID(v string) zap.Field {
	return zap.String("run_id", v)
}

// Hook crea un campo para el nombre del evento/hook.
func Hook(v string) zap.Field {
	return zap.String("hook", v)
}

// Unit crea un campo para el nombre de la unidad (app/N).
func Unit(v string) zap.Field {
	return zap.String("unit", v)
}

// Duration crea un campo para la duración de una operación.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - DOMINIO
// =================================================================================

// Relation crea un campo para el nombre de la relación.
func Relation(v string) zap.Field {
	return zap.String("relation", v)
}

// RemoteUnit crea un campo para la unidad remota que disparó el evento.
func RemoteUnit(v string) zap.Field {
	return zap.String("remote_unit", v)
}

// Domain crea un campo para el dominio de confianza (broker | zookeeper).
func Domain(v string) zap.Field {
	return zap.String("trust_domain", v)
}

// Path crea un campo para un archivo renderizado.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Service crea un campo para la unidad systemd gestionada.
func Service(v string) zap.Field {
	return zap.String("service", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Strings crea un campo de lista de strings.
func Strings(key string, v []string) zap.Field {
	return zap.Strings(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
