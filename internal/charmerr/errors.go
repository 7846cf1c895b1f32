// Package charmerr define la taxonomía de errores del charm.
//
//   - ErrNotImplemented: combinación distribución/método no soportada. Fatal: el hook falla
//     y el operador tiene que intervenir.
//   - Blocked: topología de replicación insuficiente. Recuperable; se reporta como status
//     "blocked" y se reevalúa en el próximo evento.
//   - ConfigurationIncomplete: falta data de una relación requerida (ej. Zookeeper).
//     Se trata igual que Blocked, nunca como fatal.
package charmerr

import (
	"errors"
	"fmt"
)

var ErrNotImplemented = errors.New("not implemented")

// NotImplemented envuelve ErrNotImplemented con el detalle de qué falta.
func NotImplemented(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotImplemented)
}

// Blocked indica que la derivación se abortó por una guarda de consistencia.
type Blocked struct {
	Reason string
}

func (b *Blocked) Error() string { return "blocked: " + b.Reason }

// NewBlocked crea un Blocked con la razón visible para el operador.
func NewBlocked(reason string) *Blocked { return &Blocked{Reason: reason} }

// ConfigurationIncomplete indica que falta data de relación para completar la configuración.
type ConfigurationIncomplete struct {
	Reason string
}

func (c *ConfigurationIncomplete) Error() string { return "configuration incomplete: " + c.Reason }

// Incomplete crea un ConfigurationIncomplete.
func Incomplete(reason string) *ConfigurationIncomplete {
	return &ConfigurationIncomplete{Reason: reason}
}

// StatusReason devuelve (razón, true) si err debe mostrarse como status "blocked"
// en lugar de fallar el hook.
func StatusReason(err error) (string, bool) {
	var b *Blocked
	if errors.As(err, &b) {
		return b.Reason, true
	}
	var ci *ConfigurationIncomplete
	if errors.As(err, &ci) {
		return ci.Reason, true
	}
	return "", false
}
