package charm

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dropDatabas3/kafkabroker/internal/brokerconfig"
	"github.com/dropDatabas3/kafkabroker/internal/cluster"
	"github.com/dropDatabas3/kafkabroker/internal/hooktools"
	"github.com/dropDatabas3/kafkabroker/internal/keystore"
	"github.com/dropDatabas3/kafkabroker/internal/observability/logger"
	"github.com/dropDatabas3/kafkabroker/internal/relation"
	"github.com/dropDatabas3/kafkabroker/internal/render"
	"github.com/dropDatabas3/kafkabroker/internal/service"
	"github.com/dropDatabas3/kafkabroker/internal/zookeeper"
)

// WaitingForCluster es el status cuando no se alcanzó min-units.
const WaitingForCluster = "Waiting for cluster relation"

// reconcile: keystores, derivación, render, reload y readiness, en ese orden.
// Un Blocked corta la secuencia antes de escribir nada.
func (c *Charm) reconcile(ctx context.Context, d *Dispatch) error {
	log := logger.From(ctx).With(logger.Component("reconcile"))
	o := d.Options

	if err := d.Cluster.RegisterSelf(ctx, c.deps.Env.AvailabilityZone); err != nil {
		return err
	}

	ingress, err := c.deps.Platform.IngressAddress(ctx, relation.Peer)
	if err != nil {
		return fmt.Errorf("ingress address: %w", err)
	}
	host := cluster.Host{Hostname: c.deps.Hostname, Ingress: ingress}

	// 1. keystores + publicación de confianza
	ep, err := d.Zookeeper.Endpoint(ctx)
	if err != nil {
		return err
	}
	if err := c.ensureKeystores(ctx, d, host, ep); err != nil {
		return err
	}

	// 2. derivación
	specs, err := o.ListenerSpecs()
	if err != nil {
		return err
	}
	local := cluster.LocalListeners(specs, d.State.Broker.Enabled(), o.SASLEnabled())
	listeners, err := d.Cluster.Resolve(ctx, local)
	if err != nil {
		return err
	}
	view, err := d.Cluster.View(ctx)
	if err != nil {
		return err
	}
	res, err := brokerconfig.Derive(brokerconfig.Input{
		Options:      o,
		Distribution: d.Dist,
		View:         view,
		AZ:           c.deps.Env.AvailabilityZone,
		Zookeeper:    ep,
		Broker:       d.State.Broker,
		ZK:           d.State.Zookeeper,
		Listeners:    listeners,
		Host:         host,
	})
	if err != nil {
		return err
	}
	if res.Blocked != nil {
		azs, err := d.Cluster.AZs(ctx)
		if err != nil {
			return err
		}
		log.Info("derivation blocked", logger.String("reason", res.Blocked.Reason),
			logger.Count(view.PeerCount), logger.Strings("azs", azs))
		return res.Blocked
	}
	log.Debug("derived", logger.String("summary", res.Summary()))
	if err := d.Cluster.SetAdvertisedListeners(ctx, res.Listeners.AdvertisedListeners); err != nil {
		return err
	}

	// 3. render
	tpl, err := render.LoadTemplates()
	if err != nil {
		return err
	}
	paths := c.renderPaths(d)
	arts, err := render.Build(tpl, paths, render.Input{
		Options:  o,
		Caps:     d.Dist.Caps(),
		Derived:  res,
		Hostname: c.deps.Hostname,
		SSL:      listeners.UsesSSL() || d.State.Broker.Enabled(),
	})
	if err != nil {
		return err
	}
	changed, err := render.NewWriter(paths, o.User, o.Group).Write(ctx, arts)
	if err != nil {
		return err
	}

	// 4. reload
	mgr := c.serviceManager(d)
	if mgr != nil && d.State.Installed && (changed.Any() || d.keystoreWritten) {
		if err := c.deps.Platform.StatusSet(ctx, hooktools.Maintenance, "Restarting "+d.Service); err != nil {
			return err
		}
		if err := mgr.Reload(ctx, changed.Override); err != nil {
			return err
		}
	}

	// 5. readiness
	return c.readiness(ctx, d, view, listeners, host)
}

// ensureKeystores lleva ambos dominios al modo pedido, publica el cert propio a los pares
// y a Zookeeper y rearma los truststores.
func (c *Charm) ensureKeystores(ctx context.Context, d *Dispatch, host cluster.Host, ep zookeeper.Endpoint) error {
	o := d.Options
	mgr := keystore.NewManager(c.deps.Issuer, o.User, o.Group)
	mgr.OnRegenerate = func(dom keystore.Domain, m keystore.Mode) {
		c.deps.Metrics.Keystore(string(dom), string(m))
	}
	hosts := []string{}
	for _, h := range []string{host.Hostname, host.Ingress} {
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	cn := host.Hostname
	if cn == "" {
		cn = host.Ingress
	}

	reqs := []keystore.Request{
		{
			Domain:         keystore.Broker,
			GenerateRootCA: o.GenerateRootCA,
			Cert:           o.BrokerCertPEM(),
			Key:            o.BrokerKeyPEM(),
			KeystorePath:   c.path(o.KeystorePath),
			TruststorePath: c.path(o.TruststorePath),
			CN:             cn,
			Hosts:          hosts,
		},
		{
			Domain:         keystore.Zookeeper,
			GenerateRootCA: o.GenerateRootCA,
			Cert:           o.ZookeeperCertPEM(),
			Key:            o.ZookeeperKeyPEM(),
			KeystorePath:   c.path(o.KeystoreZookeeperPath),
			TruststorePath: c.path(o.TruststoreZookeeperPath),
			CN:             cn,
			Hosts:          hosts,
		},
	}
	for _, req := range reqs {
		b, wrote, err := mgr.Ensure(ctx, d.State.Bundle(req.Domain), req)
		if err != nil {
			return err
		}
		d.keystoreWritten = d.keystoreWritten || wrote

		var trusted []string
		switch req.Domain {
		case keystore.Broker:
			pem := ""
			if b.Enabled() {
				pem = b.Cert
			}
			if err := d.Cluster.SetCert(ctx, pem); err != nil {
				return err
			}
			if trusted, err = d.Cluster.TrustedCerts(ctx); err != nil {
				return err
			}
		case keystore.Zookeeper:
			trusted = ep.Certs
		}

		b, wrote, err = mgr.SyncTruststore(ctx, b, trusted)
		if err != nil {
			return err
		}
		d.keystoreWritten = d.keystoreWritten || wrote
		d.State.SetBundle(b)
	}

	// El cert cliente se publica apenas hay material: Zookeeper puede esperar a tenerlo
	// antes de anunciar mtls.
	zk := d.State.Zookeeper
	if zk.Enabled() {
		return d.Zookeeper.SetMTLSAuth(ctx, zk.Cert, zk.TruststorePath, zk.TruststorePassword)
	}
	return nil
}

// readiness publica el status final: cluster listo, unidad systemd activa y, con
// readiness-probe, el broker respondiendo.
func (c *Charm) readiness(ctx context.Context, d *Dispatch, view cluster.View, listeners cluster.ListenerMap, host cluster.Host) error {
	c.deps.Metrics.Peers.Set(float64(view.PeerCount))
	if !view.Ready {
		d.SetStatus(hooktools.Blocked, WaitingForCluster)
		return nil
	}
	mgr := c.serviceManager(d)
	if mgr == nil {
		d.SetStatus(hooktools.Active, d.Service+" running")
		return nil
	}
	running, err := mgr.Running(ctx)
	if err != nil {
		return err
	}
	if !running {
		d.SetStatus(hooktools.Blocked, "Service not running "+d.Service)
		return nil
	}
	if d.Options.ReadinessProbe {
		if p, ok := c.probeFor(d, listeners, host); ok {
			if err := c.deps.Probe(ctx, p); err != nil {
				logger.From(ctx).Warn("readiness probe failed", logger.Err(err))
				d.SetStatus(hooktools.Waiting, "Waiting for "+d.Service+" to answer")
				return nil
			}
		}
	}
	d.SetStatus(hooktools.Active, d.Service+" running")
	return nil
}

// probeFor elige el listener inter-broker. Con SASL no hay probe: el probe no tiene
// credenciales.
func (c *Charm) probeFor(d *Dispatch, listeners cluster.ListenerMap, host cluster.Host) (service.Probe, bool) {
	if d.Options.SASLEnabled() {
		return service.Probe{}, false
	}
	_, l, ok := listeners.InterBroker()
	if !ok {
		return service.Probe{}, false
	}
	addr := host.Advertise(l.ClusterDomain)
	if addr == "" {
		addr = "127.0.0.1"
	}
	p := service.Probe{Seeds: []string{addr + ":" + strconv.Itoa(l.Port)}}
	if l.Protocol == cluster.SSL {
		cfg, err := service.TLSConfig(d.State.Broker.CACert)
		if err != nil {
			return service.Probe{}, false
		}
		p.TLS = cfg
	}
	return p, true
}

// updateStatus sólo reevalúa readiness; no reescribe configuración.
func (c *Charm) updateStatus(ctx context.Context, d *Dispatch) error {
	view, err := d.Cluster.View(ctx)
	if err != nil {
		return err
	}
	listeners, err := d.Cluster.Listeners(ctx)
	if err != nil {
		return err
	}
	if listeners == nil {
		specs, err := d.Options.ListenerSpecs()
		if err != nil {
			return err
		}
		listeners = cluster.LocalListeners(specs, d.State.Broker.Enabled(), d.Options.SASLEnabled())
	}
	ingress, err := c.deps.Platform.IngressAddress(ctx, relation.Peer)
	if err != nil {
		return fmt.Errorf("ingress address: %w", err)
	}
	return c.readiness(ctx, d, view, listeners, cluster.Host{Hostname: c.deps.Hostname, Ingress: ingress})
}
