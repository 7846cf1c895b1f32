// Package brokerconfig deriva server.properties, client.properties y
// zookeeper-tls-client.properties a partir de las opciones del operador, la vista del
// cluster, el endpoint de Zookeeper y los keystores.
//
// Derive es pura: no lee ni escribe nada fuera de su Input.
package brokerconfig

import (
	"fmt"

	"github.com/dropDatabas3/kafkabroker/internal/charmerr"
	"github.com/dropDatabas3/kafkabroker/internal/cluster"
	"github.com/dropDatabas3/kafkabroker/internal/config"
	"github.com/dropDatabas3/kafkabroker/internal/keystore"
	"github.com/dropDatabas3/kafkabroker/internal/zookeeper"
)

// NotEnoughBrokers es la razón del Blocked de la guarda de replicación.
const NotEnoughBrokers = "Not enough brokers (or AZs, if customize-failure-domain is set)"

// Tipo de store de los keystores generados.
const storeType = "PKCS12"

// Input agrupa todo lo que la derivación necesita.
type Input struct {
	Options      *config.Options
	Distribution Distribution
	View         cluster.View
	// AZ de la unidad local (JUJU_AVAILABILITY_ZONE).
	AZ        string
	Zookeeper zookeeper.Endpoint
	Broker    keystore.Bundle
	ZK        keystore.Bundle
	// Listeners resuelto por el Coordinator (nil => sin listeners explícitos).
	Listeners cluster.ListenerMap
	Host      cluster.Host
}

// Result es la configuración derivada. Blocked != nil => no hay configuración.
type Result struct {
	Server          Properties
	ZookeeperClient Properties // nil cuando Zookeeper no negoció mTLS
	Client          Properties
	Listeners       cluster.Expansion
	Blocked         *charmerr.Blocked
}

// Derive aplica los pasos de derivación en orden. Devuelve error sólo para
// combinaciones no soportadas (NotImplemented), opciones mal formadas o data de
// relación faltante (ConfigurationIncomplete).
func Derive(in Input) (Result, error) {
	o := in.Options
	caps := in.Distribution.Caps()

	// 1. overrides libres del operador
	overrides, err := o.ServerPropertiesMap()
	if err != nil {
		return Result{}, err
	}
	server := Properties(overrides)
	if server == nil {
		server = Properties{}
	}
	dirs, err := o.DataLogDirs()
	if err != nil {
		return Result{}, err
	}
	if len(dirs) > 0 {
		server.Set("log.dirs", dirs[0].Value)
	}

	// 2. failure domain
	if o.CustomizeFailureDomain && in.AZ != "" {
		server.Set("broker.rack", in.AZ)
	}

	// 3.
	rf := o.ReplicationFactor
	server.SetInt("offsets.topic.replication.factor", rf)

	// 4. guarda de topología
	if rf > in.View.PeerCount || (o.CustomizeFailureDomain && rf > in.View.DistinctAZCount) {
		return Result{Blocked: charmerr.NewBlocked(NotEnoughBrokers)}, nil
	}

	// 5.
	server.SetInt("transaction.state.log.min.isr", min(2, rf))
	server.SetInt("transaction.state.log.replication.factor", rf)

	// 6. tópicos internos de la variante
	for _, k := range caps.InternalTopicKeys {
		server.SetInt(k, rf)
	}

	// 7. listeners
	var exp cluster.Expansion
	if len(in.Listeners) > 0 {
		exp = in.Listeners.Expand(in.Host)
		server.Set("listeners", exp.Listeners)
		server.Set("advertised.listeners", exp.AdvertisedListeners)
		server.Set("listener.security.protocol.map", exp.ProtocolMap)
		if exp.InterBrokerName != "" {
			server.Set("inter.broker.listener.name", exp.InterBrokerName)
		}
	}

	// 8. TLS de clientes
	if in.Broker.Enabled() {
		server.Merge(brokerTLS(in.Broker))
	}

	// 9. SASL
	if o.SASLEnabled() {
		if !caps.SASL[o.SASLProtocol] {
			return Result{}, charmerr.NotImplemented("sasl-protocol %q on %s", o.SASLProtocol, in.Distribution)
		}
		mech := SASLMechanism(o.SASLProtocol)
		server.Set("sasl.enabled.mechanisms", mech)
		if p := interBrokerProtocol(in.Listeners); p == cluster.SASLSSL || p == cluster.SASLPlaintext {
			server.Set("sasl.mechanism.inter.broker.protocol", mech)
		}
		if o.KerberosEnabled() {
			server.Set("sasl.kerberos.service.name", o.KerberosProtocol)
		}
		if caps.Authorizer == "" {
			return Result{}, charmerr.NotImplemented("authorizer for %s", in.Distribution)
		}
		server.Set("authorizer.class.name", caps.Authorizer)
		if caps.AccessRuleProviders != "" {
			server.Set("confluent.authorizer.access.rule.providers", caps.AccessRuleProviders)
		}
	}

	// 10. Zookeeper
	connect := in.Zookeeper.ConnectString()
	if connect == "" {
		return Result{}, charmerr.Incomplete("Waiting for zookeeper relation")
	}
	server.Set("zookeeper.connect", connect)
	server.SetBool("zookeeper.set.acl", in.Zookeeper.SASL)

	// 11. mTLS contra Zookeeper
	var zkClient Properties
	if in.Zookeeper.MTLS {
		if !in.ZK.Enabled() {
			return Result{}, charmerr.Incomplete("Zookeeper requires mTLS: missing zookeeper certificate")
		}
		full := zookeeperTLS(in.ZK)
		server.Merge(full)
		zkClient = full.Without(
			"zookeeper.ssl.keystore.location",
			"zookeeper.ssl.keystore.password",
			"zookeeper.ssl.keystore.type",
		)
	}

	client, err := deriveClient(in)
	if err != nil {
		return Result{}, err
	}

	return Result{Server: server, ZookeeperClient: zkClient, Client: client, Listeners: exp}, nil
}

func brokerTLS(b keystore.Bundle) Properties {
	p := Properties{}
	p.Set("ssl.keystore.location", b.KeystorePath)
	p.Set("ssl.keystore.password", b.KeystorePassword)
	p.Set("ssl.key.password", b.KeystorePassword)
	p.Set("ssl.keystore.type", storeType)
	if b.TruststorePath != "" {
		p.Set("ssl.truststore.location", b.TruststorePath)
		p.Set("ssl.truststore.password", b.TruststorePassword)
		p.Set("ssl.truststore.type", storeType)
	}
	return p
}

func zookeeperTLS(b keystore.Bundle) Properties {
	p := Properties{}
	p.Set("zookeeper.clientCnxnSocket", "org.apache.zookeeper.ClientCnxnSocketNetty")
	p.SetBool("zookeeper.ssl.client.enable", true)
	p.Set("zookeeper.ssl.keystore.location", b.KeystorePath)
	p.Set("zookeeper.ssl.keystore.password", b.KeystorePassword)
	p.Set("zookeeper.ssl.keystore.type", storeType)
	p.Set("zookeeper.ssl.truststore.location", b.TruststorePath)
	p.Set("zookeeper.ssl.truststore.password", b.TruststorePassword)
	p.Set("zookeeper.ssl.truststore.type", storeType)
	return p
}

func interBrokerProtocol(m cluster.ListenerMap) string {
	_, l, _ := m.InterBroker()
	return l.Protocol
}

// deriveClient arma client.properties para las herramientas CLI del host. Nunca lleva el
// keystore del broker.
func deriveClient(in Input) (Properties, error) {
	o := in.Options
	overrides, err := o.ClientPropertiesMap()
	if err != nil {
		return nil, err
	}
	client := Properties(overrides)
	if client == nil {
		client = Properties{}
	}
	if p := interBrokerProtocol(in.Listeners); p != "" {
		client.Set("security.protocol", p)
	}
	if o.SASLEnabled() {
		client.Set("sasl.mechanism", SASLMechanism(o.SASLProtocol))
		if o.SASLJaasConfig != "" {
			client.Set("sasl.jaas.config", o.SASLJaasConfig)
		}
	}
	if o.KerberosEnabled() {
		client.Set("sasl.kerberos.service.name", o.SASLKerberosService)
	}
	if in.Broker.Enabled() && in.Broker.TruststorePath != "" {
		client.Set("ssl.truststore.location", in.Broker.TruststorePath)
		client.Set("ssl.truststore.password", in.Broker.TruststorePassword)
		client.Set("ssl.truststore.type", storeType)
	}
	return client, nil
}

// Summary es una línea para logs.
func (r Result) Summary() string {
	if r.Blocked != nil {
		return "blocked: " + r.Blocked.Reason
	}
	return fmt.Sprintf("server=%d client=%d zk_client=%d", len(r.Server), len(r.Client), len(r.ZookeeperClient))
}
