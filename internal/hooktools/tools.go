package hooktools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/kafkabroker/internal/observability/logger"
)

// Status del workload tal como lo acepta status-set.
type Status string

const (
	Active      Status = "active"
	Blocked     Status = "blocked"
	Maintenance Status = "maintenance"
	Waiting     Status = "waiting"
)

// Tools es la fachada tipada sobre un Runner.
type Tools struct {
	r    Runner
	memo *gocache.Cache
}

// New crea la fachada. La memo vive lo que dura el proceso (un dispatch).
func New(r Runner) *Tools {
	return &Tools{r: r, memo: gocache.New(gocache.NoExpiration, 0)}
}

func (t *Tools) read(ctx context.Context, name string, args ...string) ([]byte, error) {
	key := name + " " + strings.Join(args, " ")
	if v, ok := t.memo.Get(key); ok {
		return v.([]byte), nil
	}
	out, err := t.r.Run(ctx, nil, name, args...)
	if err != nil {
		return nil, err
	}
	t.memo.Set(key, out, gocache.NoExpiration)
	return out, nil
}

func (t *Tools) write(ctx context.Context, stdin []byte, name string, args ...string) error {
	t.memo.Flush()
	_, err := t.r.Run(ctx, stdin, name, args...)
	return err
}

func (t *Tools) readJSON(ctx context.Context, dst any, name string, args ...string) error {
	out, err := t.read(ctx, name, args...)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil
	}
	if err := json.Unmarshal(out, dst); err != nil {
		return fmt.Errorf("%s: decode output: %w", name, err)
	}
	return nil
}

// RelationIDs lista los ids ("cluster:3") de la relación name.
func (t *Tools) RelationIDs(ctx context.Context, name string) ([]string, error) {
	var ids []string
	err := t.readJSON(ctx, &ids, "relation-ids", name, "--format=json")
	return ids, err
}

// RelationList lista las unidades remotas de relID.
func (t *Tools) RelationList(ctx context.Context, relID string) ([]string, error) {
	var units []string
	err := t.readJSON(ctx, &units, "relation-list", "-r", relID, "--format=json")
	return units, err
}

// RelationGet lee el bucket de una unidad, o el de la aplicación si app=true.
func (t *Tools) RelationGet(ctx context.Context, relID, owner string, app bool) (map[string]string, error) {
	args := []string{"-r", relID, "--format=json"}
	if app {
		args = append(args, "--app")
	}
	args = append(args, "-", owner)
	m := map[string]string{}
	err := t.readJSON(ctx, &m, "relation-get", args...)
	return m, err
}

// RelationSet escribe claves en el bucket propio (o de la app si app=true).
// Los valores viajan por stdin como YAML para soportar PEMs multilínea; "" borra la clave.
func (t *Tools) RelationSet(ctx context.Context, relID string, app bool, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	body, err := yaml.Marshal(kv)
	if err != nil {
		return err
	}
	args := []string{"-r", relID}
	if app {
		args = append(args, "--app")
	}
	args = append(args, "--file", "-")
	logger.From(ctx).Debug("relation-set", logger.Relation(relID), logger.Bool("app", app), logger.Count(len(kv)))
	return t.write(ctx, body, "relation-set", args...)
}

// IsLeader consulta is-leader.
func (t *Tools) IsLeader(ctx context.Context) (bool, error) {
	var v bool
	err := t.readJSON(ctx, &v, "is-leader", "--format=json")
	return v, err
}

// StatusSet publica el status del workload.
func (t *Tools) StatusSet(ctx context.Context, s Status, msg string) error {
	return t.write(ctx, nil, "status-set", string(s), msg)
}

// ConfigGet devuelve todas las opciones como JSON crudo.
func (t *Tools) ConfigGet(ctx context.Context) ([]byte, error) {
	return t.read(ctx, "config-get", "--all", "--format=json")
}

// IngressAddress devuelve la dirección de ingreso del binding.
func (t *Tools) IngressAddress(ctx context.Context, binding string) (string, error) {
	out, err := t.read(ctx, "network-get", binding, "--ingress-address", "--format=json")
	if err != nil {
		return "", err
	}
	// según la versión del agente sale un string o una lista
	var s string
	if json.Unmarshal(out, &s) == nil {
		return s, nil
	}
	var l []string
	if err := json.Unmarshal(out, &l); err != nil {
		return "", fmt.Errorf("network-get: decode output: %w", err)
	}
	if len(l) == 0 {
		return "", fmt.Errorf("network-get %s: no ingress address", binding)
	}
	return l[0], nil
}

// ApplicationVersionSet publica la versión del workload.
func (t *Tools) ApplicationVersionSet(ctx context.Context, v string) error {
	return t.write(ctx, nil, "application-version-set", v)
}
