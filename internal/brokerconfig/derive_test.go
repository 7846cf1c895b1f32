package brokerconfig

import (
	"errors"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/kafkabroker/internal/charmerr"
	"github.com/dropDatabas3/kafkabroker/internal/cluster"
	"github.com/dropDatabas3/kafkabroker/internal/config"
	"github.com/dropDatabas3/kafkabroker/internal/keystore"
	"github.com/dropDatabas3/kafkabroker/internal/zookeeper"
)

func mustOptions(t *testing.T, raw string) *config.Options {
	t.Helper()
	o, err := config.Parse([]byte(raw))
	require.NoError(t, err)
	return o
}

func baseInput(t *testing.T, raw string, peers int) Input {
	return Input{
		Options:      mustOptions(t, raw),
		Distribution: Confluent,
		View:         cluster.View{PeerCount: peers, Ready: true},
		Zookeeper:    zookeeper.Endpoint{Servers: []string{"10.0.0.1:2181", "10.0.0.2:2181"}},
	}
}

func TestDerive_ThreePeersRF3(t *testing.T) {
	res, err := Derive(baseInput(t, `{"replication-factor": 3}`, 3))
	require.NoError(t, err)
	require.Nil(t, res.Blocked)

	assert.Equal(t, "3", res.Server["offsets.topic.replication.factor"])
	assert.Equal(t, "2", res.Server["transaction.state.log.min.isr"])
	assert.Equal(t, "3", res.Server["transaction.state.log.replication.factor"])
	assert.Equal(t, "3", res.Server["confluent.license.topic.replication.factor"])
	assert.Equal(t, "3", res.Server["confluent.metadata.topic.replication.factor"])
	assert.Equal(t, "3", res.Server["confluent.balancer.topic.replication.factor"])
	assert.Equal(t, "10.0.0.1:2181,10.0.0.2:2181", res.Server["zookeeper.connect"])
	assert.Equal(t, "false", res.Server["zookeeper.set.acl"])
	assert.Equal(t, "/var/lib/kafka/data", res.Server["log.dirs"])
	assert.Nil(t, res.ZookeeperClient)
}

func TestDerive_GuardBlocks(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		view  cluster.View
		block bool
	}{
		{"rf above peers", `{"replication-factor": 3}`, cluster.View{PeerCount: 2}, true},
		{"rf equals peers", `{"replication-factor": 2}`, cluster.View{PeerCount: 2}, false},
		{"az aware, not enough azs", `{"replication-factor": 3, "customize-failure-domain": true}`,
			cluster.View{PeerCount: 5, DistinctAZCount: 2}, true},
		{"az aware, enough azs", `{"replication-factor": 3, "customize-failure-domain": true}`,
			cluster.View{PeerCount: 3, DistinctAZCount: 3}, false},
		{"azs ignored when not aware", `{"replication-factor": 3}`, cluster.View{PeerCount: 3}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput(t, tc.raw, 0)
			in.View = tc.view
			res, err := Derive(in)
			require.NoError(t, err)
			if tc.block {
				require.NotNil(t, res.Blocked)
				assert.Equal(t, NotEnoughBrokers, res.Blocked.Reason)
				assert.Nil(t, res.Server, "blocked derivation produces no configuration")
				return
			}
			require.Nil(t, res.Blocked)
		})
	}
}

func TestDerive_MinISR(t *testing.T) {
	for rf := 1; rf <= 5; rf++ {
		in := baseInput(t, `{}`, 5)
		in.Options.ReplicationFactor = rf
		res, err := Derive(in)
		require.NoError(t, err)
		require.Nil(t, res.Blocked)
		assert.Equal(t, min(2, rf), mustAtoi(t, res.Server["transaction.state.log.min.isr"]), "rf=%d", rf)
	}
}

func TestDerive_OverridesThenDerived(t *testing.T) {
	raw := `{"replication-factor": 1, "customize-failure-domain": true,
		"server-properties": "num.partitions: 6\noffsets.topic.replication.factor: 9\n"}`
	in := baseInput(t, raw, 1)
	in.View.DistinctAZCount = 1
	in.AZ = "zone-a"
	in.Distribution = Apache

	res, err := Derive(in)
	require.NoError(t, err)

	want := Properties{
		"num.partitions":                           "6",
		"log.dirs":                                 "/var/lib/kafka/data",
		"broker.rack":                              "zone-a",
		"offsets.topic.replication.factor":         "1",
		"transaction.state.log.min.isr":            "1",
		"transaction.state.log.replication.factor": "1",
		"zookeeper.connect":                        "10.0.0.1:2181,10.0.0.2:2181",
		"zookeeper.set.acl":                        "false",
	}
	if diff := cmp.Diff(want, res.Server); diff != "" {
		t.Fatalf("server.properties mismatch (-want +got):\n%s", diff)
	}
}

func TestDerive_ListenersTLSAndSASL(t *testing.T) {
	raw := `{"replication-factor": 1, "sasl-protocol": "scram", "sasl-jaas-config": "org.apache.kafka.common.security.scram.ScramLoginModule required;"}`
	in := baseInput(t, raw, 1)
	in.Listeners = cluster.LocalListeners(nil, true, true)
	in.Host = cluster.Host{Hostname: "kafka-0", Ingress: "10.0.0.10"}
	in.Broker = keystore.Bundle{
		Domain: keystore.Broker, Mode: keystore.SelfSigned, Cert: "C", Key: "K",
		KeystorePath: "/var/ssl/private/kafka_ssl_ks.jks", KeystorePassword: "kspw",
		TruststorePath: "/var/ssl/private/kafka_ssl_ts.jks", TruststorePassword: "tspw",
	}

	res, err := Derive(in)
	require.NoError(t, err)
	s := res.Server
	assert.Equal(t, "INTERNAL://0.0.0.0:9092", s["listeners"])
	assert.Equal(t, "INTERNAL://10.0.0.10:9092", s["advertised.listeners"])
	assert.Equal(t, "INTERNAL:SASL_SSL", s["listener.security.protocol.map"])
	assert.Equal(t, "INTERNAL", s["inter.broker.listener.name"])
	assert.Equal(t, "/var/ssl/private/kafka_ssl_ks.jks", s["ssl.keystore.location"])
	assert.Equal(t, "kspw", s["ssl.keystore.password"])
	assert.Equal(t, "PKCS12", s["ssl.keystore.type"])
	assert.Equal(t, "tspw", s["ssl.truststore.password"])
	assert.Equal(t, "SCRAM-SHA-512", s["sasl.enabled.mechanisms"])
	assert.Equal(t, "SCRAM-SHA-512", s["sasl.mechanism.inter.broker.protocol"])
	assert.Equal(t, "io.confluent.kafka.security.authorizer.ConfluentServerAuthorizer", s["authorizer.class.name"])
	assert.Equal(t, "CONFLUENT,ZK_ACL", s["confluent.authorizer.access.rule.providers"])

	c := res.Client
	assert.Equal(t, "SASL_SSL", c["security.protocol"])
	assert.Equal(t, "SCRAM-SHA-512", c["sasl.mechanism"])
	assert.Contains(t, c["sasl.jaas.config"], "ScramLoginModule")
	assert.Equal(t, "/var/ssl/private/kafka_ssl_ts.jks", c["ssl.truststore.location"])
	for k := range c {
		assert.NotContains(t, k, "keystore", "client.properties must not carry the broker keystore")
	}
}

func TestDerive_Kerberos(t *testing.T) {
	raw := `{"replication-factor": 1, "sasl-protocol": "kerberos", "kerberos-protocol": "kafka",
		"kerberos-realm": "EXAMPLE.COM", "kerberos-domain": "example.com"}`
	in := baseInput(t, raw, 1)
	in.Distribution = Apache
	res, err := Derive(in)
	require.NoError(t, err)
	assert.Equal(t, "GSSAPI", res.Server["sasl.enabled.mechanisms"])
	assert.Equal(t, "kafka", res.Server["sasl.kerberos.service.name"])
	assert.Equal(t, "kafka.security.authorizer.AclAuthorizer", res.Server["authorizer.class.name"])
	assert.NotContains(t, res.Server, "confluent.authorizer.access.rule.providers")
	assert.Equal(t, "GSSAPI", res.Client["sasl.mechanism"])
	assert.Equal(t, "HTTP", res.Client["sasl.kerberos.service.name"])
}

func TestDerive_ApacheLDAPNotImplemented(t *testing.T) {
	in := baseInput(t, `{"replication-factor": 1, "sasl-protocol": "ldap"}`, 1)
	in.Distribution = Apache
	_, err := Derive(in)
	require.ErrorIs(t, err, charmerr.ErrNotImplemented)
}

func TestDerive_MissingZookeeper(t *testing.T) {
	in := baseInput(t, `{"replication-factor": 1}`, 1)
	in.Zookeeper = zookeeper.Endpoint{}
	_, err := Derive(in)
	var ci *charmerr.ConfigurationIncomplete
	require.True(t, errors.As(err, &ci))
	reason, ok := charmerr.StatusReason(err)
	assert.True(t, ok)
	assert.Equal(t, "Waiting for zookeeper relation", reason)
}

func TestDerive_ZookeeperMTLS(t *testing.T) {
	in := baseInput(t, `{"replication-factor": 1}`, 1)
	in.Zookeeper.SASL = true
	in.Zookeeper.MTLS = true
	in.Zookeeper.Chroot = "/kafka"
	in.ZK = keystore.Bundle{
		Domain: keystore.Zookeeper, Mode: keystore.SelfSigned, Cert: "C", Key: "K",
		KeystorePath: "/var/ssl/private/kafka_zk_ks.jks", KeystorePassword: "zkks",
		TruststorePath: "/var/ssl/private/kafka_zk_ts.jks", TruststorePassword: "zkts",
	}

	res, err := Derive(in)
	require.NoError(t, err)
	s := res.Server
	assert.Equal(t, "10.0.0.1:2181,10.0.0.2:2181/kafka", s["zookeeper.connect"])
	assert.Equal(t, "true", s["zookeeper.set.acl"])
	assert.Equal(t, "org.apache.zookeeper.ClientCnxnSocketNetty", s["zookeeper.clientCnxnSocket"])
	assert.Equal(t, "/var/ssl/private/kafka_zk_ks.jks", s["zookeeper.ssl.keystore.location"])
	assert.Equal(t, "zkks", s["zookeeper.ssl.keystore.password"])

	want := Properties{
		"zookeeper.clientCnxnSocket":        "org.apache.zookeeper.ClientCnxnSocketNetty",
		"zookeeper.ssl.client.enable":       "true",
		"zookeeper.ssl.truststore.location": "/var/ssl/private/kafka_zk_ts.jks",
		"zookeeper.ssl.truststore.password": "zkts",
		"zookeeper.ssl.truststore.type":     "PKCS12",
	}
	if diff := cmp.Diff(want, res.ZookeeperClient); diff != "" {
		t.Fatalf("zookeeper-tls-client.properties mismatch (-want +got):\n%s", diff)
	}

	in.ZK = keystore.Bundle{Domain: keystore.Zookeeper}
	_, err = Derive(in)
	_, ok := charmerr.StatusReason(err)
	assert.True(t, ok)
}

func TestProperties_Render(t *testing.T) {
	p := Properties{"b": "2", "a": "x\ny"}
	p.SetBool("c", true)
	assert.Equal(t, "a=x y\nb=2\nc=true\n", string(p.Render()))
	assert.Equal(t, Properties{"b": "2"}, p.Without("a", "c"))
}

func TestParseDistribution(t *testing.T) {
	d, err := ParseDistribution("Apache")
	require.NoError(t, err)
	assert.Equal(t, Apache, d)
	assert.Equal(t, "kafka", d.Caps().Service)

	d, err = ParseDistribution("")
	require.NoError(t, err)
	assert.Equal(t, Confluent, d)
	assert.Equal(t, "confluent-server", ServiceName(d, &config.Options{}))
	assert.Equal(t, "my-kafka", ServiceName(d, &config.Options{ServiceName: "my-kafka"}))

	_, err = ParseDistribution("redpanda")
	require.ErrorIs(t, err, charmerr.ErrNotImplemented)
}

func TestSASLMechanism(t *testing.T) {
	cases := map[string]string{
		"kerberos":         "GSSAPI",
		"oauthbearer":      "OAUTHBEARER",
		"scram":            "SCRAM-SHA-512",
		"plain":            "PLAIN",
		"ldap":             "PLAIN",
		"delegation-token": "SCRAM-SHA-512",
		"":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SASLMechanism(in), in)
	}
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}
