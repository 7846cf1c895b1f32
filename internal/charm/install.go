package charm

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"

	"github.com/dropDatabas3/kafkabroker/internal/charmerr"
	"github.com/dropDatabas3/kafkabroker/internal/hooktools"
	"github.com/dropDatabas3/kafkabroker/internal/observability/logger"
	"github.com/dropDatabas3/kafkabroker/internal/util/atomicwrite"
)

// AptInstaller instala con apt-get. Reintenta mientras otro proceso tenga el lock de dpkg.
type AptInstaller struct {
	Runner   hooktools.Runner
	Attempts uint
	Delay    time.Duration
}

func (a AptInstaller) Install(ctx context.Context, packages []string) error {
	attempts, delay := a.Attempts, a.Delay
	if attempts == 0 {
		attempts, delay = 3, 10*time.Second
	}
	args := append([]string{"install", "-y", "--no-install-recommends"}, packages...)
	return retry.Do(func() error {
		_, err := a.Runner.Run(ctx, nil, "apt-get", args...)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.From(ctx).Warn("apt-get install retry", logger.Int("attempt", int(n)+1), logger.Err(err))
		}),
	)
}

// install instala los paquetes de la variante y prepara los directorios de datos.
func (c *Charm) install(ctx context.Context, d *Dispatch) error {
	o := d.Options
	if o.InstallMethod == "archive" {
		return charmerr.NotImplemented("install_method=archive")
	}
	caps := d.Dist.Caps()
	if len(caps.Packages) == 0 {
		return charmerr.NotImplemented("package install for distribution %s", d.Dist)
	}

	if err := c.deps.Platform.StatusSet(ctx, hooktools.Maintenance, "Installing packages"); err != nil {
		return err
	}
	if err := c.deps.Installer.Install(ctx, caps.Packages); err != nil {
		return fmt.Errorf("install packages: %w", err)
	}

	dirs, err := o.DataLogDirs()
	if err != nil {
		return err
	}
	for _, kv := range dirs {
		dir := c.path(kv.Value)
		if err := atomicwrite.MkdirAll(dir, atomicwrite.Options{Perm: 0o750, User: o.User, Group: o.Group}); err != nil {
			return err
		}
		logger.From(ctx).Info("data log dir ready", logger.Path(dir), logger.String("fs", kv.Key))
	}

	if mgr := c.serviceManager(d); mgr != nil {
		if err := mgr.Enable(ctx); err != nil {
			return err
		}
	}
	if err := c.deps.Platform.ApplicationVersionSet(ctx, o.ConfluentRepo); err != nil {
		return err
	}

	d.State.Installed = true
	d.State.AppVersion = o.ConfluentRepo
	return nil
}
