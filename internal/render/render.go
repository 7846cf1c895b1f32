// Package render convierte la configuración derivada en los archivos que consume el host:
// properties del broker, override de systemd y los artefactos de Kerberos.
package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dropDatabas3/kafkabroker/internal/brokerconfig"
	"github.com/dropDatabas3/kafkabroker/internal/config"
	"github.com/dropDatabas3/kafkabroker/internal/observability/logger"
	"github.com/dropDatabas3/kafkabroker/internal/util/atomicwrite"
)

const (
	dhFlag   = "-Djdk.tls.ephemeralDHKeySize=2048"
	jaasFlag = "-Djava.security.auth.login.config="
)

// Paths son las ubicaciones de los artefactos.
type Paths struct {
	ServerProperties string
	ClientProperties string
	ZookeeperClient  string
	Override         string
	Krb5             string
	JAAS             string
	KeytabDir        string
}

// DefaultPaths devuelve las rutas del host para la unidad systemd svc.
func DefaultPaths(svc string) Paths {
	return Paths{
		ServerProperties: "/etc/kafka/server.properties",
		ClientProperties: "/etc/kafka/client.properties",
		ZookeeperClient:  "/etc/kafka/zookeeper-tls-client.properties",
		Override:         "/etc/systemd/system/" + svc + ".service.d/override.conf",
		Krb5:             "/etc/krb5.conf",
		JAAS:             "/etc/kafka/jaas.conf",
		KeytabDir:        "/etc/security/keytabs",
	}
}

// Under re-ancla todas las rutas bajo root (tests, CLI render).
func (p Paths) Under(root string) Paths {
	j := func(s string) string { return filepath.Join(root, s) }
	return Paths{
		ServerProperties: j(p.ServerProperties),
		ClientProperties: j(p.ClientProperties),
		ZookeeperClient:  j(p.ZookeeperClient),
		Override:         j(p.Override),
		Krb5:             j(p.Krb5),
		JAAS:             j(p.JAAS),
		KeytabDir:        j(p.KeytabDir),
	}
}

// Keytab devuelve la ruta del keytab con ese nombre.
func (p Paths) Keytab(name string) string { return filepath.Join(p.KeytabDir, name) }

// Input es lo necesario para construir los artefactos.
type Input struct {
	Options  *config.Options
	Caps     brokerconfig.Capabilities
	Derived  brokerconfig.Result
	Hostname string
	// SSL => el broker sirve TLS y la JVM necesita el flag de DH.
	SSL bool
}

// Artifacts son los contenidos listos para escribir. nil => el artefacto no aplica.
type Artifacts struct {
	Server          []byte
	Client          []byte
	ZookeeperClient []byte
	Override        []byte
	Krb5            []byte
	JAAS            []byte
	Keytab          []byte
	KeytabName      string
}

// Build renderiza todos los artefactos en memoria.
func Build(t *Templates, p Paths, in Input) (Artifacts, error) {
	o := in.Options
	a := Artifacts{
		Server: in.Derived.Server.Render(),
		Client: in.Derived.Client.Render(),
	}
	if in.Derived.ZookeeperClient != nil {
		a.ZookeeperClient = in.Derived.ZookeeperClient.Render()
	}

	ov, err := overrideVars(o, in.Caps, in.SSL, p.JAAS)
	if err != nil {
		return Artifacts{}, err
	}
	if a.Override, err = t.Override(ov); err != nil {
		return Artifacts{}, err
	}

	if !o.KerberosEnabled() {
		return a, nil
	}
	realm := strings.ToUpper(o.KerberosRealm)
	admin := o.KerberosAdminHostname
	if admin == "" {
		admin = o.KerberosKDCHostname
	}
	if a.Krb5, err = t.Krb5(Krb5Vars{
		Realm:    realm,
		Domain:   o.KerberosDomain,
		KDC:      o.KerberosKDCHostname,
		Admin:    admin,
		Enctypes: Enctypes,
	}); err != nil {
		return Artifacts{}, err
	}
	if a.JAAS, err = t.JAAS(JAASVars{
		Keytab:    p.Keytab(o.KerberosKeytabName),
		Principal: principal(o, in.Hostname),
	}); err != nil {
		return Artifacts{}, err
	}
	if a.Keytab, err = o.KerberosKeytabBytes(); err != nil {
		return Artifacts{}, fmt.Errorf("kerberos-keytab: %w", err)
	}
	a.KeytabName = o.KerberosKeytabName
	return a, nil
}

// principal arma <protocol>/<host>.<domain>@<REALM> salvo que kerberos-principal lo fije.
func principal(o *config.Options, hostname string) string {
	if o.KerberosPrincipal != "" {
		return o.KerberosPrincipal
	}
	fqdn := hostname
	if o.KerberosDomain != "" && !strings.HasSuffix(hostname, "."+o.KerberosDomain) {
		fqdn = hostname + "." + o.KerberosDomain
	}
	return fmt.Sprintf("%s/%s@%s", o.KerberosProtocol, fqdn, strings.ToUpper(o.KerberosRealm))
}

func overrideVars(o *config.Options, caps brokerconfig.Capabilities, ssl bool, jaasPath string) (OverrideVars, error) {
	unit, err := o.UnitOverrides()
	if err != nil {
		return OverrideVars{}, err
	}
	svc, err := o.ServiceOverrides()
	if err != nil {
		return OverrideVars{}, err
	}
	env, err := o.EnvironmentOverrides()
	if err != nil {
		return OverrideVars{}, err
	}

	var flags []string
	if ssl {
		flags = append(flags, dhFlag)
	}
	if o.KerberosEnabled() {
		flags = append(flags, jaasFlag+jaasPath)
	}
	if len(flags) > 0 {
		targets := []string{"KAFKA_OPTS"}
		if o.KerberosEnabled() {
			targets = append(targets, caps.ComponentOpts...)
		}
		env = withJVMFlags(env, targets, flags)
	}
	return OverrideVars{
		Unit:        unit,
		User:        o.User,
		Group:       o.Group,
		Service:     svc,
		Environment: env,
	}, nil
}

// withJVMFlags agrega flags a cada variable target. Las variables target se mueven al final,
// conservando lo que el operador ya había puesto en ellas.
func withJVMFlags(env []config.KV, targets, flags []string) []config.KV {
	user := map[string]string{}
	isTarget := map[string]bool{}
	for _, t := range targets {
		isTarget[t] = true
	}
	out := make([]config.KV, 0, len(env)+len(targets))
	for _, kv := range env {
		if isTarget[kv.Key] {
			user[kv.Key] = kv.Value
			continue
		}
		out = append(out, kv)
	}
	for _, t := range targets {
		out = append(out, config.KV{Key: t, Value: joinFlags(user[t], flags)})
	}
	return out
}

func joinFlags(base string, flags []string) string {
	seen := map[string]bool{}
	all := make([]string, 0, len(flags)+4)
	all = append(all, flags...)
	all = append(all, strings.Fields(base)...)
	var out []string
	for _, f := range all {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// Changed indica qué grupo de artefactos se reescribió.
type Changed struct {
	Properties bool
	Override   bool
	Kerberos   bool
}

func (c Changed) Any() bool { return c.Properties || c.Override || c.Kerberos }

// Writer escribe los artefactos en disco con el owner del broker.
type Writer struct {
	paths Paths
	user  string
	group string
}

func NewWriter(p Paths, user, group string) *Writer {
	return &Writer{paths: p, user: user, group: group}
}

func (w *Writer) Paths() Paths { return w.paths }

type file struct {
	path  string
	data  []byte
	perm  fs.FileMode
	owned bool
	flag  *bool
}

// Write persiste los artefactos. Los que no cambiaron no se tocan.
func (w *Writer) Write(ctx context.Context, a Artifacts) (Changed, error) {
	log := logger.From(ctx).With(logger.Component("render"))
	var ch Changed

	files := []file{
		{w.paths.ServerProperties, a.Server, 0o640, true, &ch.Properties},
		{w.paths.ClientProperties, a.Client, 0o640, true, &ch.Properties},
		{w.paths.Override, a.Override, 0o644, false, &ch.Override},
	}
	if a.Krb5 != nil {
		files = append(files,
			file{w.paths.Krb5, a.Krb5, 0o644, false, &ch.Kerberos},
			file{w.paths.JAAS, a.JAAS, 0o640, true, &ch.Kerberos},
		)
	}
	if len(a.Keytab) > 0 && a.KeytabName != "" {
		files = append(files, file{w.paths.Keytab(a.KeytabName), a.Keytab, 0o600, true, &ch.Kerberos})
	}

	if a.ZookeeperClient != nil {
		files = append(files, file{w.paths.ZookeeperClient, a.ZookeeperClient, 0o640, true, &ch.Properties})
	} else {
		removed, err := removeIfExists(w.paths.ZookeeperClient)
		if err != nil {
			return ch, err
		}
		if removed {
			log.Info("stale zookeeper client config removed", logger.Path(w.paths.ZookeeperClient))
			ch.Properties = true
		}
	}

	for _, f := range files {
		opts := atomicwrite.Options{Perm: f.perm}
		if f.owned {
			opts.User, opts.Group = w.user, w.group
		}
		changed, err := atomicwrite.WriteFile(f.path, f.data, opts)
		if err != nil {
			return ch, fmt.Errorf("write %s: %w", f.path, err)
		}
		if changed {
			log.Info("artifact written", logger.Path(f.path))
			*f.flag = true
		}
	}
	return ch, nil
}

func removeIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("remove %s: %w", path, err)
}
