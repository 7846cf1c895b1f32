package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dropDatabas3/kafkabroker/internal/charmerr"
	"github.com/dropDatabas3/kafkabroker/internal/config"
)

// Protocolos de seguridad de Kafka.
const (
	Plaintext     = "PLAINTEXT"
	SSL           = "SSL"
	SASLPlaintext = "SASL_PLAINTEXT"
	SASLSSL       = "SASL_SSL"
)

// DefaultListenerName / DefaultListenerPort: listener único cuando el operador no define ninguno.
const (
	DefaultListenerName = "internal"
	DefaultListenerPort = 9092
)

// ListenerMap es el mapa nombre -> listener compartido por el cluster.
type ListenerMap map[string]config.ListenerSpec

// ProtocolFor elige el protocolo según TLS y SASL.
func ProtocolFor(tls, sasl bool) string {
	switch {
	case tls && sasl:
		return SASLSSL
	case tls:
		return SSL
	case sasl:
		return SASLPlaintext
	default:
		return Plaintext
	}
}

// LocalListeners arma el template local: el de la opción listeners, o el default.
// Completa protocolos vacíos y garantiza exactamente un listener inter-broker.
func LocalListeners(specs map[string]config.ListenerSpec, tls, sasl bool) ListenerMap {
	proto := ProtocolFor(tls, sasl)
	if len(specs) == 0 {
		return ListenerMap{DefaultListenerName: {Port: DefaultListenerPort, Protocol: proto, InterBroker: true}}
	}
	out := make(ListenerMap, len(specs))
	inter := ""
	for _, name := range sortedNames(specs) {
		l := specs[name]
		if l.Protocol == "" {
			l.Protocol = proto
		}
		l.Protocol = strings.ToUpper(l.Protocol)
		if l.InterBroker {
			if inter != "" {
				l.InterBroker = false
			} else {
				inter = name
			}
		}
		out[name] = l
	}
	if inter == "" {
		pick := sortedNames(specs)[0]
		if _, ok := out[DefaultListenerName]; ok {
			pick = DefaultListenerName
		}
		l := out[pick]
		l.InterBroker = true
		out[pick] = l
	}
	return out
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Canonical codifica el mapa como JSON con claves ordenadas.
func (m ListenerMap) Canonical() (string, error) {
	if m == nil {
		m = ListenerMap{}
	}
	b, err := json.Marshal(map[string]config.ListenerSpec(m))
	if err != nil {
		return "", fmt.Errorf("encode listeners: %w", err)
	}
	return string(b), nil
}

// ParseListenerMap decodifica el JSON publicado por el líder ("" => mapa vacío).
func ParseListenerMap(s string) (ListenerMap, error) {
	m := ListenerMap{}
	if strings.TrimSpace(s) == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode listeners: %w", err)
	}
	return m, nil
}

// Resolve decide qué mapa usar: sin relación el local; el líder publica el local y lo usa;
// el resto espera el del líder.
func (c *Coordinator) Resolve(ctx context.Context, local ListenerMap) (ListenerMap, error) {
	id, err := c.relID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return local, nil
	}
	leader, err := c.leader.IsLeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("is-leader: %w", err)
	}
	if leader {
		if err := c.SetListeners(ctx, local); err != nil {
			return nil, err
		}
		return local, nil
	}
	m, err := c.Listeners(ctx)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, charmerr.Incomplete("Waiting for listener map from leader")
	}
	return m, nil
}

// Host identifica a la unidad para anunciar listeners.
type Host struct {
	Hostname string
	Ingress  string
}

// Advertise devuelve <hostname>.<domain> si el listener tiene cluster-domain, o la
// dirección de ingreso.
func (h Host) Advertise(domain string) string {
	if domain != "" && h.Hostname != "" {
		return h.Hostname + "." + strings.TrimPrefix(domain, ".")
	}
	return h.Ingress
}

// Expansion son las cuatro propiedades derivadas del mapa.
type Expansion struct {
	Listeners           string
	AdvertisedListeners string
	ProtocolMap         string
	InterBrokerName     string
}

// Expand traduce el mapa a propiedades para esta unidad. Nombres en mayúsculas,
// orden alfabético.
func (m ListenerMap) Expand(h Host) Expansion {
	var (
		ls, adv, pm []string
		inter       string
	)
	for _, name := range sortedNames(m) {
		l := m[name]
		upper := strings.ToUpper(name)
		port := strconv.Itoa(l.Port)
		ls = append(ls, upper+"://0.0.0.0:"+port)
		adv = append(adv, upper+"://"+h.Advertise(l.ClusterDomain)+":"+port)
		pm = append(pm, upper+":"+l.Protocol)
	}
	if name, _, ok := m.InterBroker(); ok {
		inter = strings.ToUpper(name)
	}
	return Expansion{
		Listeners:           strings.Join(ls, ","),
		AdvertisedListeners: strings.Join(adv, ","),
		ProtocolMap:         strings.Join(pm, ","),
		InterBrokerName:     inter,
	}
}

// InterBroker devuelve el primer listener marcado inter-broker, en orden alfabético.
func (m ListenerMap) InterBroker() (string, config.ListenerSpec, bool) {
	for _, name := range sortedNames(m) {
		if m[name].InterBroker {
			return name, m[name], true
		}
	}
	return "", config.ListenerSpec{}, false
}

// UsesSSL reporta si algún listener usa TLS.
func (m ListenerMap) UsesSSL() bool {
	for _, l := range m {
		if l.Protocol == SSL || l.Protocol == SASLSSL {
			return true
		}
	}
	return false
}
