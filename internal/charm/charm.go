// Package charm es el controller del ciclo de vida: recibe un evento de la plataforma,
// carga opciones y estado, corre los handlers registrados para ese evento y reporta el
// status del workload.
//
// Un dispatch es síncrono y corre hasta el final; el estado local viaja explícito en
// Dispatch y se guarda al terminar sólo si cambió.
package charm

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/dropDatabas3/kafkabroker/internal/brokerconfig"
	"github.com/dropDatabas3/kafkabroker/internal/charmerr"
	"github.com/dropDatabas3/kafkabroker/internal/cluster"
	"github.com/dropDatabas3/kafkabroker/internal/config"
	"github.com/dropDatabas3/kafkabroker/internal/hooktools"
	"github.com/dropDatabas3/kafkabroker/internal/keystore"
	"github.com/dropDatabas3/kafkabroker/internal/metrics"
	"github.com/dropDatabas3/kafkabroker/internal/observability/logger"
	"github.com/dropDatabas3/kafkabroker/internal/relation"
	"github.com/dropDatabas3/kafkabroker/internal/render"
	"github.com/dropDatabas3/kafkabroker/internal/service"
	"github.com/dropDatabas3/kafkabroker/internal/state"
	"github.com/dropDatabas3/kafkabroker/internal/zookeeper"
)

// Platform es lo que el controller usa del agente fuera de las relaciones.
type Platform interface {
	ConfigGet(ctx context.Context) ([]byte, error)
	IsLeader(ctx context.Context) (bool, error)
	StatusSet(ctx context.Context, s hooktools.Status, msg string) error
	IngressAddress(ctx context.Context, binding string) (string, error)
	ApplicationVersionSet(ctx context.Context, v string) error
}

// StateStore persiste el Context entre dispatches.
type StateStore interface {
	Load(ctx context.Context) (state.Context, error)
	Save(ctx context.Context, loaded, cur state.Context) (state.Context, bool, error)
	RecordDispatch(ctx context.Context, runID, hook, outcome string, version int) error
}

// Installer instala paquetes del sistema.
type Installer interface {
	Install(ctx context.Context, packages []string) error
}

// ProbeFunc verifica que el broker responda.
type ProbeFunc func(ctx context.Context, p service.Probe) error

// Deps son los colaboradores del controller.
type Deps struct {
	Env      config.HookEnv
	RunID    string
	Hostname string
	// Root prefija todas las rutas del host. Vacío en producción.
	Root string

	Platform  Platform
	Relations relation.Store
	State     StateStore
	Issuer    keystore.Issuer
	Installer Installer
	// Systemd nil => no se recarga ni se consulta la unidad (render en seco).
	Systemd      service.Systemd
	ServiceRetry []service.Option
	Probe        ProbeFunc
	Metrics      *metrics.Metrics
}

// Charm es el controller.
type Charm struct {
	deps     Deps
	handlers Registry
}

// New arma el controller con su registry de eventos.
func New(deps Deps) *Charm {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Probe == nil {
		deps.Probe = func(ctx context.Context, p service.Probe) error { return p.Ping(ctx) }
	}
	c := &Charm{deps: deps}
	c.handlers = c.registry()
	return c
}

// Registry expone los eventos atendidos.
func (c *Charm) Registry() Registry { return c.handlers }

// Dispatch es el estado de un dispatch en curso.
type Dispatch struct {
	Event   EventKind
	Options *config.Options
	Dist    brokerconfig.Distribution
	Service string
	State   *state.Context

	Cluster   *cluster.Coordinator
	Zookeeper *zookeeper.Link

	// keystoreWritten fuerza reload aunque los properties no cambien.
	keystoreWritten bool

	status  hooktools.Status
	message string
}

// SetStatus fija el status que se publicará al final del dispatch.
func (d *Dispatch) SetStatus(s hooktools.Status, msg string) {
	d.status, d.message = s, msg
}

// Status devuelve el status pendiente.
func (d *Dispatch) Status() (hooktools.Status, string) { return d.status, d.message }

// path re-ancla una ruta del host bajo Root.
func (c *Charm) path(p string) string {
	if c.deps.Root == "" || p == "" {
		return p
	}
	return filepath.Join(c.deps.Root, p)
}

// Dispatch procesa event. Devuelve error sólo cuando el hook debe fallar.
func (c *Charm) Dispatch(ctx context.Context, event string) error {
	start := time.Now()
	log := logger.From(ctx).With(logger.Hook(event), logger.Unit(c.deps.Env.UnitName))
	ctx = logger.ToContext(ctx, log)

	kind, handlers, ok := c.handlers.Lookup(event)
	if !ok {
		log.Info("event ignored")
		return nil
	}

	loaded, err := c.deps.State.Load(ctx)
	if err != nil {
		return err
	}
	cur := loaded
	d := &Dispatch{Event: kind, State: &cur}

	herr := c.run(ctx, d, handlers)
	outcome, fatal := c.finish(ctx, d, herr)

	saved, wrote, serr := c.deps.State.Save(ctx, loaded, cur)
	if serr == nil {
		if wrote {
			log.Debug("state saved", logger.Int("version", saved.Version))
		}
		serr = c.deps.State.RecordDispatch(ctx, c.deps.RunID, event, outcome, saved.Version)
	}

	c.deps.Metrics.ObserveHook(event, outcome, time.Since(start))
	if d.Options != nil {
		if err := c.deps.Metrics.WriteTextfile(c.path(d.Options.MetricsTextfile), c.deps.Env.UnitName); err != nil {
			log.Warn("metrics textfile", logger.Err(err))
		}
	}

	log.Info("dispatch finished", logger.String("outcome", outcome), logger.Duration(time.Since(start)))
	return errors.Join(fatal, serr)
}

// run carga opciones y corre los handlers hasta el primer error.
func (c *Charm) run(ctx context.Context, d *Dispatch, handlers []Handler) error {
	raw, err := c.deps.Platform.ConfigGet(ctx)
	if err != nil {
		return err
	}
	o, err := config.Parse(raw)
	if err != nil {
		return charmerr.NewBlocked("Invalid configuration: " + strings.ReplaceAll(err.Error(), "\n", "; "))
	}
	dist, err := brokerconfig.ParseDistribution(o.Distribution)
	if err != nil {
		return err
	}
	d.Options = o
	d.Dist = dist
	d.Service = brokerconfig.ServiceName(dist, o)
	d.Cluster = cluster.New(c.deps.Relations, c.deps.Platform, cluster.Options{
		MinUnits: o.MinUnits,
		AZAware:  o.CustomizeFailureDomain,
		AZ:       c.deps.Env.AvailabilityZone,
	})
	d.Zookeeper = zookeeper.New(c.deps.Relations)

	for _, h := range handlers {
		if err := h(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// finish publica el status. Blocked/ConfigurationIncomplete se muestran como blocked y
// no fallan el hook; cualquier otro error se devuelve.
func (c *Charm) finish(ctx context.Context, d *Dispatch, herr error) (string, error) {
	log := logger.From(ctx)
	if herr != nil {
		reason, ok := charmerr.StatusReason(herr)
		if !ok {
			log.Error("dispatch failed", logger.Err(herr))
			return "error", herr
		}
		d.SetStatus(hooktools.Blocked, reason)
	}
	s, msg := d.Status()
	if s == "" {
		return "none", nil
	}
	if err := c.deps.Platform.StatusSet(ctx, s, msg); err != nil {
		return "error", err
	}
	return string(s), nil
}

func (c *Charm) serviceManager(d *Dispatch) *service.Manager {
	if c.deps.Systemd == nil {
		return nil
	}
	return service.NewManager(c.deps.Systemd, d.Service, c.deps.ServiceRetry...)
}

func (c *Charm) renderPaths(d *Dispatch) render.Paths {
	p := render.DefaultPaths(d.Service)
	if c.deps.Root != "" {
		p = p.Under(c.deps.Root)
	}
	return p
}
