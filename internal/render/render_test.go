package render

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/kafkabroker/internal/brokerconfig"
	"github.com/dropDatabas3/kafkabroker/internal/config"
)

var kerberosOptions = `{"user": "test", "group": "test",
	"sasl-protocol": "kerberos", "kerberos-protocol": "HTTP",
	"kerberos-realm": "test.com", "kerberos-domain": "example.com",
	"kerberos-kdc-hostname": "ldap.example.com",
	"kerberos-keytab-name": "test.keytab", "kerberos-keytab": "` + keytabB64 + `",
	"service-environment-overrides": "KAFKA_HEAP_OPTS: -Xmx1g\nKAFKA_OPTS: -Djava.security.auth.login.config=/etc/kafka/jaas.conf"}`

var keytabB64 = base64.StdEncoding.EncodeToString([]byte("KEYTAB"))

func mustOptions(t *testing.T, raw string) *config.Options {
	t.Helper()
	o, err := config.Parse([]byte(raw))
	require.NoError(t, err)
	return o
}

func mustTemplates(t *testing.T) *Templates {
	t.Helper()
	tpl, err := LoadTemplates()
	require.NoError(t, err)
	return tpl
}

func derived() brokerconfig.Result {
	return brokerconfig.Result{
		Server: brokerconfig.Properties{"zookeeper.connect": "zk:2181", "broker.rack": "az1"},
		Client: brokerconfig.Properties{"security.protocol": "PLAINTEXT"},
	}
}

func TestBuild_OverridePlain(t *testing.T) {
	o := mustOptions(t, `{"user": "test", "group": "test",
		"service-unit-overrides": "After: network.target",
		"service-overrides": "LimitNOFILE: 100000",
		"service-environment-overrides": "KAFKA_HEAP_OPTS: -Xmx1g\nLOG_DIR: /var/log/kafka"}`)

	a, err := Build(mustTemplates(t), DefaultPaths("confluent-server"), Input{
		Options: o, Caps: brokerconfig.Confluent.Caps(), Derived: derived(),
	})
	require.NoError(t, err)

	want := `[Unit]
After=network.target

[Service]
User=test
Group=test
LimitNOFILE=100000
Environment="KAFKA_HEAP_OPTS=-Xmx1g"
Environment="LOG_DIR=/var/log/kafka"
`
	if diff := cmp.Diff(want, string(a.Override)); diff != "" {
		t.Fatalf("override.conf mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "broker.rack=az1\nzookeeper.connect=zk:2181\n", string(a.Server))
	assert.Nil(t, a.ZookeeperClient)
	assert.Nil(t, a.Krb5)
	assert.Nil(t, a.JAAS)
}

func TestBuild_OverrideWithoutSections(t *testing.T) {
	o := mustOptions(t, `{"user": "kafka", "group": "kafka"}`)
	a, err := Build(mustTemplates(t), DefaultPaths("kafka"), Input{
		Options: o, Caps: brokerconfig.Apache.Caps(), Derived: derived(), SSL: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "[Service]\nUser=kafka\nGroup=kafka\nEnvironment=\"KAFKA_OPTS=-Djdk.tls.ephemeralDHKeySize=2048\"\n", string(a.Override))
}

func TestBuild_KerberosConfluent(t *testing.T) {
	o := mustOptions(t, kerberosOptions)
	a, err := Build(mustTemplates(t), DefaultPaths("confluent-server"), Input{
		Options: o, Caps: brokerconfig.Confluent.Caps(), Derived: derived(),
		Hostname: "test", SSL: true,
	})
	require.NoError(t, err)

	opts := "-Djdk.tls.ephemeralDHKeySize=2048 -Djava.security.auth.login.config=/etc/kafka/jaas.conf"
	wantOverride := `[Service]
User=test
Group=test
Environment="KAFKA_HEAP_OPTS=-Xmx1g"
Environment="KAFKA_OPTS=` + opts + `"
Environment="SCHEMA_REGISTRY_OPTS=` + opts + `"
Environment="KSQL_OPTS=` + opts + `"
Environment="KAFKAREST_OPTS=` + opts + `"
Environment="CONTROL_CENTER_OPTS=` + opts + `"
`
	if diff := cmp.Diff(wantOverride, string(a.Override)); diff != "" {
		t.Fatalf("override.conf mismatch (-want +got):\n%s", diff)
	}

	wantKrb5 := `[libdefaults]
 default_realm = TEST.COM
 dns_lookup_realm = false
 dns_lookup_kdc = false
 ticket_lifetime = 24h
 forwardable = true
 udp_preference_limit = 1
 default_tkt_enctypes = aes256-cts-hmac-sha1-96 aes128-cts-hmac-sha1-96 arc-four-hmac rc4-hmac
 default_tgs_enctypes = aes256-cts-hmac-sha1-96 aes128-cts-hmac-sha1-96 arc-four-hmac rc4-hmac
 permitted_enctypes = aes256-cts-hmac-sha1-96 aes128-cts-hmac-sha1-96 arc-four-hmac rc4-hmac

[realms]
 TEST.COM = {
  kdc = ldap.example.com:88
  admin_server = ldap.example.com:749
  default_domain = example.com
 }

[domain_realm]
 .example.com = TEST.COM
 example.com = TEST.COM
`
	if diff := cmp.Diff(wantKrb5, string(a.Krb5)); diff != "" {
		t.Fatalf("krb5.conf mismatch (-want +got):\n%s", diff)
	}

	wantJAAS := `KafkaServer {
    com.sun.security.auth.module.Krb5LoginModule required
    useKeyTab=true
    keyTab="/etc/security/keytabs/test.keytab"
    storeKey=true
    useTicketCache=false
    principal="HTTP/test.example.com@TEST.COM";
};
`
	if diff := cmp.Diff(wantJAAS, string(a.JAAS)); diff != "" {
		t.Fatalf("jaas.conf mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []byte("KEYTAB"), a.Keytab)
	assert.Equal(t, "test.keytab", a.KeytabName)
}

func TestBuild_KerberosApacheOnlyKafkaOpts(t *testing.T) {
	o := mustOptions(t, kerberosOptions)
	a, err := Build(mustTemplates(t), DefaultPaths("kafka"), Input{
		Options: o, Caps: brokerconfig.Apache.Caps(), Derived: derived(), Hostname: "test.example.com",
	})
	require.NoError(t, err)
	assert.NotContains(t, string(a.Override), "KSQL_OPTS")
	assert.Contains(t, string(a.Override), `Environment="KAFKA_OPTS=-Djava.security.auth.login.config=/etc/kafka/jaas.conf"`)
	assert.NotContains(t, string(a.Override), "ephemeralDHKeySize")
	assert.Contains(t, string(a.JAAS), `principal="HTTP/test.example.com@TEST.COM";`)
}

func TestPrincipal_Explicit(t *testing.T) {
	o := mustOptions(t, kerberosOptions)
	o.KerberosPrincipal = "kafka/broker@TEST.COM"
	assert.Equal(t, "kafka/broker@TEST.COM", principal(o, "ignored"))
}

func TestJoinFlags_KeepsOperatorFlags(t *testing.T) {
	got := joinFlags("-Xss1m -Djdk.tls.ephemeralDHKeySize=2048", []string{"-Djdk.tls.ephemeralDHKeySize=2048", "-Da=b"})
	assert.Equal(t, "-Djdk.tls.ephemeralDHKeySize=2048 -Da=b -Xss1m", got)
}

func TestWriter_WritesOnlyOnChange(t *testing.T) {
	root := t.TempDir()
	paths := DefaultPaths("confluent-server").Under(root)
	o := mustOptions(t, kerberosOptions)

	res := derived()
	res.ZookeeperClient = brokerconfig.Properties{"zookeeper.ssl.client.enable": "true"}
	a, err := Build(mustTemplates(t), paths, Input{
		Options: o, Caps: brokerconfig.Confluent.Caps(), Derived: res, Hostname: "test",
	})
	require.NoError(t, err)

	w := NewWriter(paths, "", "")
	ch, err := w.Write(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, Changed{Properties: true, Override: true, Kerberos: true}, ch)

	perms := map[string]os.FileMode{
		paths.ServerProperties:      0o640,
		paths.ClientProperties:      0o640,
		paths.ZookeeperClient:       0o640,
		paths.Override:              0o644,
		paths.Krb5:                  0o644,
		paths.JAAS:                  0o640,
		paths.Keytab("test.keytab"): 0o600,
	}
	for p, want := range perms {
		st, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Equal(t, want, st.Mode().Perm(), filepath.Base(p))
	}

	ch, err = w.Write(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, ch.Any(), "second write with identical content must be a no-op")

	// Zookeeper deja de negociar mTLS: el archivo del cliente desaparece.
	a.ZookeeperClient = nil
	ch, err = w.Write(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, Changed{Properties: true}, ch)
	_, err = os.Stat(paths.ZookeeperClient)
	assert.True(t, os.IsNotExist(err))
}
