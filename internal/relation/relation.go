// Package relation modela los buckets de datos que el agente replica entre unidades.
//
// Cada relación tiene un bucket por unidad (sólo la dueña escribe el suyo) y un bucket
// por aplicación (sólo el líder escribe el de su app). Store abstrae el acceso para
// que cluster y zookeeper no dependan de los hook tools.
package relation

import (
	"context"
	"errors"
	"strings"
)

// Nombres de relación declarados en metadata.yaml.
const (
	Peer      = "cluster"
	Zookeeper = "zookeeper"
)

// ErrNotLeader: escritura en el bucket de app desde una unidad no líder.
var ErrNotLeader = errors.New("relation: app bucket is leader-only")

// Bucket es el contenido de un bucket: claves y valores string.
type Bucket map[string]string

// Equal compara dos buckets ignorando claves vacías (una clave vacía equivale a ausente).
func (b Bucket) Equal(o Bucket) bool {
	n := 0
	for k, v := range b {
		if v == "" {
			continue
		}
		if o[k] != v {
			return false
		}
		n++
	}
	for _, v := range o {
		if v != "" {
			n--
		}
	}
	return n == 0
}

// Diff devuelve las claves de want cuyo valor difiere en b.
func (b Bucket) Diff(want Bucket) Bucket {
	out := Bucket{}
	for k, v := range want {
		if b[k] != v {
			out[k] = v
		}
	}
	return out
}

// Store es el acceso a las relaciones desde la unidad local.
type Store interface {
	// LocalUnit devuelve el nombre de la unidad local ("kafka/0").
	LocalUnit() string
	// IDs devuelve los ids de las relaciones con ese nombre.
	IDs(ctx context.Context, name string) ([]string, error)
	// Units devuelve las unidades remotas de la relación (sin la local), ordenadas.
	Units(ctx context.Context, relID string) ([]string, error)
	// UnitData lee el bucket de una unidad (remota o la local).
	UnitData(ctx context.Context, relID, unit string) (Bucket, error)
	// AppData lee el bucket de una aplicación.
	AppData(ctx context.Context, relID, app string) (Bucket, error)
	// SetUnitData escribe en el bucket propio. "" borra la clave.
	SetUnitData(ctx context.Context, relID string, kv Bucket) error
	// SetAppData escribe en el bucket de la aplicación local. "" borra la clave.
	SetAppData(ctx context.Context, relID string, kv Bucket) error
}

// AppOf devuelve la aplicación de una unidad ("zookeeper/1" => "zookeeper").
func AppOf(unit string) string {
	if i := strings.IndexByte(unit, '/'); i > 0 {
		return unit[:i]
	}
	return unit
}

// First devuelve el primer id de la relación name, o "" si no existe.
// Las relaciones del charm tienen a lo sumo una instancia.
func First(ctx context.Context, s Store, name string) (string, error) {
	ids, err := s.IDs(ctx, name)
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}
