package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/dropDatabas3/kafkabroker/internal/observability/logger"
)

var errTransient = errors.New("unit in transition")

// Manager aplica cambios de configuración sobre una unidad systemd.
type Manager struct {
	sd       Systemd
	unit     string
	attempts uint
	delay    time.Duration
}

type Option func(*Manager)

// WithRetry ajusta reintentos de reload y de chequeo de estado.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(m *Manager) {
		m.attempts = attempts
		m.delay = delay
	}
}

// NewManager crea un Manager para name ("kafka" o "kafka.service").
func NewManager(sd Systemd, name string, opts ...Option) *Manager {
	if !strings.HasSuffix(name, ".service") {
		name += ".service"
	}
	m := &Manager{sd: sd, unit: name, attempts: 5, delay: 2 * time.Second}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Unit() string { return m.unit }

func (m *Manager) retry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			if errors.Is(err, errTransient) {
				return
			}
			logger.From(ctx).Debug("systemd retry", logger.Op(op), logger.Service(m.unit),
				logger.Int("attempt", int(n)+1), logger.Err(err))
		}),
		retry.Attempts(m.attempts),
		retry.Delay(m.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// Reload reinicia el broker. daemonReload=true cuando cambió el override de systemd.
func (m *Manager) Reload(ctx context.Context, daemonReload bool) error {
	log := logger.From(ctx).With(logger.Component("service"), logger.Service(m.unit))
	if daemonReload {
		if err := m.retry(ctx, "daemon-reload", func() error { return m.sd.DaemonReload(ctx) }); err != nil {
			return err
		}
		log.Info("systemd daemon reloaded")
	}
	if err := m.retry(ctx, "restart", func() error { return m.sd.Restart(ctx, m.unit) }); err != nil {
		return err
	}
	log.Info("service restarted")
	return nil
}

func (m *Manager) Enable(ctx context.Context) error {
	return m.retry(ctx, "enable", func() error { return m.sd.Enable(ctx, m.unit) })
}

// Running reporta si la unidad quedó active. Los estados transitorios se reintentan.
func (m *Manager) Running(ctx context.Context) (bool, error) {
	var state string
	err := m.retry(ctx, "active-state", func() error {
		s, err := m.sd.ActiveState(ctx, m.unit)
		if err != nil {
			return err
		}
		state = s
		switch s {
		case "activating", "reloading", "deactivating":
			return errTransient
		}
		return nil
	})
	if err != nil && !errors.Is(err, errTransient) {
		return false, err
	}
	return state == "active", nil
}
