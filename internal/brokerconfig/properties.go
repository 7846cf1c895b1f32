package brokerconfig

import (
	"sort"
	"strconv"
	"strings"
)

// Properties es un archivo .properties aplanado. Ints y bools se formatean al setear.
type Properties map[string]string

func (p Properties) Set(k, v string)          { p[k] = v }
func (p Properties) SetInt(k string, v int)   { p[k] = strconv.Itoa(v) }
func (p Properties) SetBool(k string, v bool) { p[k] = strconv.FormatBool(v) }

// Merge copia o sobre p, pisando claves existentes.
func (p Properties) Merge(o Properties) {
	for k, v := range o {
		p[k] = v
	}
}

// Without devuelve una copia sin las claves indicadas.
func (p Properties) Without(keys ...string) Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Keys devuelve las claves ordenadas.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Render serializa como key=value ordenado, una línea por clave.
func (p Properties) Render() []byte {
	var b strings.Builder
	for _, k := range p.Keys() {
		b.WriteString(k)
		b.WriteByte('=')
		// una propiedad no puede cruzar líneas
		b.WriteString(strings.ReplaceAll(p[k], "\n", " "))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
