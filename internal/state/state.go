// Package state persiste el estado local de la unidad entre dispatches en SQLite.
//
// El estado se carga al inicio del dispatch como un Context versionado, viaja
// explícito por los handlers y se guarda al final sólo si cambió (Version+1).
// Claves privadas y passwords se guardan sellados con secretbox.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/dropDatabas3/kafkabroker/internal/keystore"
	"github.com/dropDatabas3/kafkabroker/internal/security/secretbox"
	migrations "github.com/dropDatabas3/kafkabroker/migrations/sqlite"
)

// FileName es el archivo de la base dentro del directorio del charm.
const FileName = ".unit-state.db"

// KeyFileName es el archivo de la clave de sellado.
const KeyFileName = ".unit-state.key"

const (
	keyVersion      = "version"
	keyInstalled    = "installed"
	keyAppVersion   = "app_version"
	keyBundlePrefix = "bundle."
)

// Context es el estado durable de la unidad.
type Context struct {
	Version    int
	Installed  bool
	AppVersion string
	Broker     keystore.Bundle
	Zookeeper  keystore.Bundle
}

// Bundle devuelve el bundle del dominio.
func (c *Context) Bundle(d keystore.Domain) keystore.Bundle {
	if d == keystore.Zookeeper {
		return c.Zookeeper
	}
	return c.Broker
}

// SetBundle reemplaza el bundle del dominio.
func (c *Context) SetBundle(b keystore.Bundle) {
	if b.Domain == keystore.Zookeeper {
		c.Zookeeper = b
		return
	}
	c.Broker = b
}

// Equal compara el contenido (sin Version).
func (c Context) Equal(o Context) bool {
	return c.Installed == o.Installed && c.AppVersion == o.AppVersion &&
		c.Broker.Equal(o.Broker) && c.Zookeeper.Equal(o.Zookeeper)
}

// Store es el acceso a la base.
type Store struct {
	db  *sql.DB
	box *secretbox.Box
}

// Open abre (o crea) la base y aplica migraciones.
func Open(ctx context.Context, path string, box *secretbox.Box) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// un dispatch por vez: una sola conexión evita SQLITE_BUSY entre goroutines
	db.SetMaxOpenConns(1)

	for _, p := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;"} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if _, err := NewMigrator(migrations.FS, migrations.Dir).Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, box: box}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Load lee el Context. Una base vacía devuelve el Context cero (Version 0).
func (s *Store) Load(ctx context.Context) (Context, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM unit_state")
	if err != nil {
		return Context{}, fmt.Errorf("load state: %w", err)
	}
	defer rows.Close()

	var c Context
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Context{}, err
		}
		switch k {
		case keyVersion:
			c.Version, _ = strconv.Atoi(v)
		case keyInstalled:
			c.Installed = v == "true"
		case keyAppVersion:
			c.AppVersion = v
		case keyBundlePrefix + string(keystore.Broker), keyBundlePrefix + string(keystore.Zookeeper):
			b, err := s.decodeBundle(v)
			if err != nil {
				return Context{}, fmt.Errorf("state %s: %w", k, err)
			}
			c.SetBundle(b)
		}
	}
	return c, rows.Err()
}

// Save persiste cur si difiere de loaded. Devuelve el Context guardado (con la versión
// nueva) y si hubo escritura.
func (s *Store) Save(ctx context.Context, loaded, cur Context) (Context, bool, error) {
	if cur.Equal(loaded) {
		return loaded, false, nil
	}
	cur.Version = loaded.Version + 1

	values := map[string]string{
		keyVersion:    strconv.Itoa(cur.Version),
		keyInstalled:  strconv.FormatBool(cur.Installed),
		keyAppVersion: cur.AppVersion,
	}
	for _, b := range []keystore.Bundle{cur.Broker, cur.Zookeeper} {
		if b.Domain == "" {
			continue
		}
		enc, err := s.encodeBundle(b)
		if err != nil {
			return loaded, false, err
		}
		values[keyBundlePrefix+string(b.Domain)] = enc
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return loaded, false, err
	}
	defer func() { _ = tx.Rollback() }()

	// optimistic: otro proceso no debería haber escrito entre Load y Save
	var stored string
	err = tx.QueryRowContext(ctx, "SELECT value FROM unit_state WHERE key = ?", keyVersion).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return loaded, false, err
	}
	if v, _ := strconv.Atoi(stored); v != loaded.Version {
		return loaded, false, fmt.Errorf("state version conflict: stored %d, loaded %d", v, loaded.Version)
	}

	for k, v := range values {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO unit_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v); err != nil {
			return loaded, false, fmt.Errorf("save %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return loaded, false, err
	}
	return cur, true, nil
}

// RecordDispatch agrega una fila al historial de dispatches.
func (s *Store) RecordDispatch(ctx context.Context, runID, hook, outcome string, version int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO dispatch_log (run_id, hook, outcome, version) VALUES (?, ?, ?, ?)",
		runID, hook, outcome, version)
	return err
}

// DispatchCount devuelve cuántos dispatches quedaron registrados.
func (s *Store) DispatchCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dispatch_log").Scan(&n)
	return n, err
}

// DispatchRecord es una fila de dispatch_log.
type DispatchRecord struct {
	RunID      string
	Hook       string
	Outcome    string
	Version    int
	FinishedAt string
}

// RecentDispatches devuelve los últimos n dispatches, el más reciente primero.
func (s *Store) RecentDispatches(ctx context.Context, n int) ([]DispatchRecord, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, hook, outcome, version, CAST(finished_at AS TEXT) FROM dispatch_log ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DispatchRecord
	for rows.Next() {
		var r DispatchRecord
		if err := rows.Scan(&r.RunID, &r.Hook, &r.Outcome, &r.Version, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// encodeBundle serializa a JSON con Key y passwords sellados.
func (s *Store) encodeBundle(b keystore.Bundle) (string, error) {
	var err error
	if b.Key, err = s.seal(b.Key); err != nil {
		return "", err
	}
	if b.KeystorePassword, err = s.seal(b.KeystorePassword); err != nil {
		return "", err
	}
	if b.TruststorePassword, err = s.seal(b.TruststorePassword); err != nil {
		return "", err
	}
	out, err := json.Marshal(b)
	return string(out), err
}

func (s *Store) decodeBundle(v string) (keystore.Bundle, error) {
	var b keystore.Bundle
	if err := json.Unmarshal([]byte(v), &b); err != nil {
		return b, err
	}
	var err error
	if b.Key, err = s.open(b.Key); err != nil {
		return b, err
	}
	if b.KeystorePassword, err = s.open(b.KeystorePassword); err != nil {
		return b, err
	}
	if b.TruststorePassword, err = s.open(b.TruststorePassword); err != nil {
		return b, err
	}
	return b, nil
}

func (s *Store) seal(v string) (string, error) {
	if s.box == nil {
		return v, nil
	}
	return s.box.Seal(v)
}

func (s *Store) open(v string) (string, error) {
	if s.box == nil {
		return v, nil
	}
	return s.box.Open(v)
}
