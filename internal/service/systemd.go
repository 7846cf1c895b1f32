// Package service controla la unidad systemd del broker y verifica que responda.
package service

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Systemd es la parte de systemd que usa el controller.
type Systemd interface {
	DaemonReload(ctx context.Context) error
	Restart(ctx context.Context, unit string) error
	Enable(ctx context.Context, unit string) error
	ActiveState(ctx context.Context, unit string) (string, error)
	Close()
}

// DBus implementa Systemd sobre el bus del sistema.
type DBus struct {
	conn *dbus.Conn
}

// DialDBus abre la conexión al bus del sistema.
func DialDBus(ctx context.Context) (*DBus, error) {
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("systemd dbus: %w", err)
	}
	return &DBus{conn: conn}, nil
}

func (d *DBus) Close() { d.conn.Close() }

func (d *DBus) DaemonReload(ctx context.Context) error {
	return d.conn.ReloadContext(ctx)
}

// Restart encola un restart y espera el resultado del job.
func (d *DBus) Restart(ctx context.Context, unit string) error {
	done := make(chan string, 1)
	if _, err := d.conn.RestartUnitContext(ctx, unit, "replace", done); err != nil {
		return fmt.Errorf("restart %s: %w", unit, err)
	}
	select {
	case res := <-done:
		if res != "done" {
			return fmt.Errorf("restart %s: job %s", unit, res)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DBus) Enable(ctx context.Context, unit string) error {
	_, _, err := d.conn.EnableUnitFilesContext(ctx, []string{unit}, false, true)
	if err != nil {
		return fmt.Errorf("enable %s: %w", unit, err)
	}
	return nil
}

func (d *DBus) ActiveState(ctx context.Context, unit string) (string, error) {
	st, err := d.conn.ListUnitsByNamesContext(ctx, []string{unit})
	if err != nil {
		return "", fmt.Errorf("list %s: %w", unit, err)
	}
	if len(st) == 0 {
		return "inactive", nil
	}
	return st[0].ActiveState, nil
}
