package brokerconfig

import (
	"strings"

	"github.com/dropDatabas3/kafkabroker/internal/charmerr"
	"github.com/dropDatabas3/kafkabroker/internal/config"
)

// Distribution es la variante de Kafka instalada.
type Distribution int

const (
	Apache Distribution = iota
	Confluent
)

func (d Distribution) String() string {
	switch d {
	case Apache:
		return "apache"
	case Confluent:
		return "confluent"
	default:
		return "unknown"
	}
}

// ParseDistribution traduce la opción distribution.
func ParseDistribution(s string) (Distribution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "apache":
		return Apache, nil
	case "confluent", "":
		return Confluent, nil
	default:
		return 0, charmerr.NotImplemented("distribution %q", s)
	}
}

// Capabilities es lo que cada variante sabe hacer.
type Capabilities struct {
	// Packages a instalar con el gestor de paquetes. Vacío => instalación no soportada.
	Packages []string
	// Service es la unidad systemd del broker.
	Service string
	// Authorizer y AccessRuleProviders se aplican cuando hay SASL.
	Authorizer          string
	AccessRuleProviders string
	// InternalTopicKeys reciben replication-factor.
	InternalTopicKeys []string
	// ComponentOpts son variables *_OPTS extra que reciben el JAAS con kerberos.
	ComponentOpts []string
	// SASL mecanismos soportados (por valor de sasl-protocol).
	SASL map[string]bool
}

var capabilities = map[Distribution]Capabilities{
	Confluent: {
		Packages: []string{
			"openjdk-11-headless",
			"confluent-common",
			"confluent-rest-utils",
			"confluent-metadata-service",
			"confluent-ce-kafka-http-server",
			"confluent-kafka-rest",
			"confluent-server-rest",
			"confluent-telemetry",
			"confluent-server",
			"confluent-rebalancer",
			"confluent-security",
		},
		Service:             "confluent-server",
		Authorizer:          "io.confluent.kafka.security.authorizer.ConfluentServerAuthorizer",
		AccessRuleProviders: "CONFLUENT,ZK_ACL",
		InternalTopicKeys: []string{
			"confluent.license.topic.replication.factor",
			"confluent.metadata.topic.replication.factor",
			"confluent.balancer.topic.replication.factor",
		},
		ComponentOpts: []string{"SCHEMA_REGISTRY_OPTS", "KSQL_OPTS", "KAFKAREST_OPTS", "CONTROL_CENTER_OPTS"},
		SASL: map[string]bool{
			config.SASLKerberos: true, config.SASLOAuthBearer: true, config.SASLScram: true,
			config.SASLPlain: true, config.SASLDelegationToken: true, config.SASLLDAP: true,
		},
	},
	Apache: {
		Service:    "kafka",
		Authorizer: "kafka.security.authorizer.AclAuthorizer",
		SASL: map[string]bool{
			config.SASLKerberos: true, config.SASLOAuthBearer: true, config.SASLScram: true,
			config.SASLPlain: true, config.SASLDelegationToken: true,
		},
	},
}

// Caps devuelve la tabla de la variante.
func (d Distribution) Caps() Capabilities { return capabilities[d] }

// ServiceName devuelve la unidad systemd; service-name la pisa.
func ServiceName(d Distribution, o *config.Options) string {
	if o != nil && o.ServiceName != "" {
		return o.ServiceName
	}
	return d.Caps().Service
}

// SASLMechanism traduce sasl-protocol al mecanismo de Kafka.
func SASLMechanism(protocol string) string {
	switch protocol {
	case config.SASLKerberos:
		return "GSSAPI"
	case config.SASLOAuthBearer:
		return "OAUTHBEARER"
	case config.SASLScram, config.SASLDelegationToken:
		return "SCRAM-SHA-512"
	case config.SASLPlain, config.SASLLDAP:
		return "PLAIN"
	default:
		return ""
	}
}
