package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Options son las opciones del charm tal como las entrega `config-get --format=json`.
// Los tags yaml sirven también para JSON: yaml.v3 decodifica JSON sin cambios.
type Options struct {
	User  string `yaml:"user"`
	Group string `yaml:"group"`

	// confluent | apache
	Distribution string `yaml:"distribution"`
	// package | archive
	InstallMethod   string `yaml:"install_method"`
	ConfluentRepo   string `yaml:"confluent-version"`
	DataLogDir      string `yaml:"data-log-dir"` // YAML: {fs: dir}
	DataLogDevice   string `yaml:"data-log-device"`
	FSOptions       string `yaml:"fs-options"`
	ServiceName     string `yaml:"service-name"` // opcional, pisa el del variant
	ReadinessProbe  bool   `yaml:"readiness-probe"`
	MetricsTextfile string `yaml:"metrics-textfile-dir"`

	// Topología / replicación
	ReplicationFactor      int  `yaml:"replication-factor"`
	MinUnits               int  `yaml:"min-units"`
	CustomizeFailureDomain bool `yaml:"customize-failure-domain"`

	ServerProperties string `yaml:"server-properties"` // YAML map libre
	ClientProperties string `yaml:"client-properties"` // YAML map libre
	Listeners        string `yaml:"listeners"`         // YAML map name -> ListenerSpec

	// TLS
	GenerateRootCA          bool   `yaml:"generate-root-ca"`
	SSLCert                 string `yaml:"ssl_cert"`    // base64 PEM
	SSLKey                  string `yaml:"ssl_key"`     // base64 PEM
	SSLZKCert               string `yaml:"ssl-zk-cert"` // base64 PEM
	SSLZKKey                string `yaml:"ssl-zk-key"`  // base64 PEM
	KeystorePath            string `yaml:"keystore-path"`
	TruststorePath          string `yaml:"truststore-path"`
	KeystoreZookeeperPath   string `yaml:"keystore-zookeeper-path"`
	TruststoreZookeeperPath string `yaml:"truststore-zookeeper-path"`

	// SASL / Kerberos
	SASLProtocol          string `yaml:"sasl-protocol"`
	SASLJaasConfig        string `yaml:"sasl-jaas-config"`
	SASLKerberosService   string `yaml:"sasl-kbros-service"`
	KerberosKDCHostname   string `yaml:"kerberos-kdc-hostname"`
	KerberosAdminHostname string `yaml:"kerberos-admin-hostname"`
	KerberosProtocol      string `yaml:"kerberos-protocol"`
	KerberosDomain        string `yaml:"kerberos-domain"`
	KerberosRealm         string `yaml:"kerberos-realm"`
	KerberosPrincipal     string `yaml:"kerberos-principal"`
	KerberosKeytab        string `yaml:"kerberos-keytab"` // base64
	KerberosKeytabName    string `yaml:"kerberos-keytab-name"`

	// systemd override
	ServiceUnitOverrides        string `yaml:"service-unit-overrides"`
	ServiceOverridesRaw         string `yaml:"service-overrides"`
	ServiceEnvironmentOverrides string `yaml:"service-environment-overrides"`
}

// SASL mechanisms aceptados en sasl-protocol.
const (
	SASLNone            = ""
	SASLKerberos        = "kerberos"
	SASLOAuthBearer     = "oauthbearer"
	SASLScram           = "scram"
	SASLPlain           = "plain"
	SASLDelegationToken = "delegation-token"
	SASLLDAP            = "ldap"
)

// Load lee las opciones desde un archivo YAML/JSON (CLI `render`).
func Load(path string) (*Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodifica opciones, aplica defaults y valida.
func Parse(b []byte) (*Options, error) {
	var o Options
	// Se distingue "ausente" de un cero explícito con punteros: generate-root-ca default
	// true, y un replication-factor/min-units en 0 tiene que fallar Validate.
	var probe struct {
		GenerateRootCA    *bool `yaml:"generate-root-ca"`
		ReplicationFactor *int  `yaml:"replication-factor"`
		MinUnits          *int  `yaml:"min-units"`
	}
	if err := yaml.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if err := yaml.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if probe.GenerateRootCA == nil {
		o.GenerateRootCA = true
	}
	if probe.ReplicationFactor == nil {
		o.ReplicationFactor = 3
	}
	if probe.MinUnits == nil {
		o.MinUnits = 3
	}

	o.applyDefaults()

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (o *Options) applyDefaults() {
	if o.User == "" {
		o.User = "cp-kafka"
	}
	if o.Group == "" {
		o.Group = "confluent"
	}
	if strings.TrimSpace(o.Distribution) == "" {
		o.Distribution = "confluent"
	}
	o.Distribution = strings.ToLower(strings.TrimSpace(o.Distribution))
	if o.InstallMethod == "" {
		o.InstallMethod = "package"
	}
	if o.ConfluentRepo == "" {
		o.ConfluentRepo = "6.1"
	}
	if o.DataLogDir == "" {
		o.DataLogDir = "ext4: /var/lib/kafka/data"
	}
	if o.KeystorePath == "" {
		o.KeystorePath = "/var/ssl/private/kafka_ssl_ks.jks"
	}
	if o.TruststorePath == "" {
		o.TruststorePath = "/var/ssl/private/kafka_ssl_ts.jks"
	}
	if o.KeystoreZookeeperPath == "" {
		o.KeystoreZookeeperPath = "/var/ssl/private/kafka_zk_ks.jks"
	}
	if o.TruststoreZookeeperPath == "" {
		o.TruststoreZookeeperPath = "/var/ssl/private/kafka_zk_ts.jks"
	}
	o.SASLProtocol = strings.ToLower(strings.TrimSpace(o.SASLProtocol))
	if o.SASLKerberosService == "" {
		o.SASLKerberosService = "HTTP"
	}
	if o.KerberosKeytabName == "" {
		o.KerberosKeytabName = "kafka.keytab"
	}
}

// Validate chequea rangos y que los base64 sean decodificables cuando se van a usar.
func (o *Options) Validate() error {
	var errs []error
	if o.ReplicationFactor < 1 {
		errs = append(errs, fmt.Errorf("replication-factor must be >= 1, got %d", o.ReplicationFactor))
	}
	if o.MinUnits < 1 {
		errs = append(errs, fmt.Errorf("min-units must be >= 1, got %d", o.MinUnits))
	}
	switch o.SASLProtocol {
	case SASLNone, SASLKerberos, SASLOAuthBearer, SASLScram, SASLPlain, SASLDelegationToken, SASLLDAP:
	default:
		errs = append(errs, fmt.Errorf("unknown sasl-protocol %q", o.SASLProtocol))
	}
	if !o.GenerateRootCA {
		for key, v := range map[string]string{
			"ssl_cert": o.SSLCert, "ssl_key": o.SSLKey,
			"ssl-zk-cert": o.SSLZKCert, "ssl-zk-key": o.SSLZKKey,
		} {
			if _, err := decodeB64(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}
	if o.SASLProtocol == SASLKerberos {
		if o.KerberosRealm == "" || o.KerberosDomain == "" || o.KerberosProtocol == "" {
			errs = append(errs, errors.New("kerberos requires kerberos-realm, kerberos-domain and kerberos-protocol"))
		}
	}
	return errors.Join(errs...)
}

// SASLEnabled reporta si algún mecanismo SASL está activo.
func (o *Options) SASLEnabled() bool { return o.SASLProtocol != SASLNone }

// KerberosEnabled reporta si sasl-protocol es kerberos.
func (o *Options) KerberosEnabled() bool { return o.SASLProtocol == SASLKerberos }

// BrokerCertPEM / BrokerKeyPEM / ZookeeperCertPEM / ZookeeperKeyPEM decodifican el material
// suministrado por el operador (modo generate-root-ca=false); Validate ya garantizó que decodifican.
func (o *Options) BrokerCertPEM() string    { return mustDecode(o.SSLCert) }
func (o *Options) BrokerKeyPEM() string     { return mustDecode(o.SSLKey) }
func (o *Options) ZookeeperCertPEM() string { return mustDecode(o.SSLZKCert) }
func (o *Options) ZookeeperKeyPEM() string  { return mustDecode(o.SSLZKKey) }

func mustDecode(v string) string {
	s, _ := decodeB64(v)
	return s
}

// KerberosKeytabBytes decodifica el keytab suministrado.
func (o *Options) KerberosKeytabBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(o.KerberosKeytab))
}

func decodeB64(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	return string(b), nil
}

// KV es un par clave/valor que conserva el orden del YAML original.
type KV struct {
	Key   string
	Value string
}

// ServerPropertiesMap decodifica server-properties (map libre).
func (o *Options) ServerPropertiesMap() (map[string]string, error) {
	return flatMap("server-properties", o.ServerProperties)
}

// ClientPropertiesMap decodifica client-properties (map libre).
func (o *Options) ClientPropertiesMap() (map[string]string, error) {
	return flatMap("client-properties", o.ClientProperties)
}

// DataLogDirs devuelve los pares fs/dir de data-log-dir en el orden del YAML.
func (o *Options) DataLogDirs() ([]KV, error) {
	return orderedMap("data-log-dir", o.DataLogDir)
}

// EnvironmentOverrides / UnitOverrides / ServiceOverrides: secciones del override de systemd.
func (o *Options) EnvironmentOverrides() ([]KV, error) {
	return orderedMap("service-environment-overrides", o.ServiceEnvironmentOverrides)
}
func (o *Options) UnitOverrides() ([]KV, error) {
	return orderedMap("service-unit-overrides", o.ServiceUnitOverrides)
}
func (o *Options) ServiceOverrides() ([]KV, error) {
	return orderedMap("service-overrides", o.ServiceOverridesRaw)
}

func flatMap(name, raw string) (map[string]string, error) {
	kvs, err := orderedMap(name, raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out, nil
}

// orderedMap decodifica un mapping YAML de escalares preservando el orden de las claves.
func orderedMap(name, raw string) ([]KV, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected a mapping", name)
	}
	out := make([]KV, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%s: value of %q must be a scalar", name, k.Value)
		}
		out = append(out, KV{Key: k.Value, Value: v.Value})
	}
	return out, nil
}

// ListenerSpec describe un listener de la opción `listeners`.
type ListenerSpec struct {
	Port          int    `yaml:"port" json:"port"`
	Protocol      string `yaml:"protocol" json:"protocol,omitempty"`
	InterBroker   bool   `yaml:"inter-broker" json:"inter_broker,omitempty"`
	ClusterDomain string `yaml:"cluster-domain" json:"cluster_domain,omitempty"`
}

// ListenerSpecs decodifica la opción listeners. Vacía => nil (el cluster usa el default).
func (o *Options) ListenerSpecs() (map[string]ListenerSpec, error) {
	if strings.TrimSpace(o.Listeners) == "" {
		return nil, nil
	}
	var m map[string]ListenerSpec
	if err := yaml.Unmarshal([]byte(o.Listeners), &m); err != nil {
		return nil, fmt.Errorf("listeners: %w", err)
	}
	for name, l := range m {
		if l.Port <= 0 || l.Port > 65535 {
			return nil, fmt.Errorf("listeners: %s: invalid port %s", name, strconv.Itoa(l.Port))
		}
	}
	return m, nil
}
