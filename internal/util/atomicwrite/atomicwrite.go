// Package atomicwrite provee helpers para escritura atómica de archivos de configuración.
// Un lector concurrente (el broker, systemd) nunca ve un archivo a medio escribir.
package atomicwrite

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// Options controla permisos y ownership del archivo final.
type Options struct {
	Perm  fs.FileMode
	User  string // vacío => no se hace chown
	Group string // vacío => grupo primario de User
}

// AtomicWriteFile escribe data a path de forma atómica.
// Pasos: write tmp → Sync → Close → Chmod → Rename.
func AtomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	return write(path, data, perm, -1, -1)
}

// WriteFile escribe data sólo si el contenido (o los permisos) cambió respecto al disco.
// Retorna changed=true cuando hubo escritura; lo usa el controller para decidir el reload.
func WriteFile(path string, data []byte, opts Options) (bool, error) {
	uid, gid, err := lookupOwner(opts.User, opts.Group)
	if err != nil {
		return false, err
	}

	if cur, err := os.ReadFile(path); err == nil && bytes.Equal(cur, data) {
		if st, err := os.Stat(path); err == nil && st.Mode().Perm() == opts.Perm.Perm() {
			return false, nil
		}
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	if err := write(path, data, opts.Perm, uid, gid); err != nil {
		return false, err
	}
	return true, nil
}

func write(path string, data []byte, perm fs.FileMode, uid, gid int) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	// Cleanup en caso de error
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	// Perms y owner antes del rename: el archivo nunca queda visible con 0600 de CreateTemp.
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if uid >= 0 {
		if err := os.Chown(tmpPath, uid, gid); err != nil {
			return fmt.Errorf("chown temp: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// lookupOwner resuelve user/group a uid/gid. (-1, -1) => sin chown.
func lookupOwner(userName, groupName string) (int, int, error) {
	if userName == "" {
		return -1, -1, nil
	}
	u, err := user.Lookup(userName)
	if err != nil {
		return 0, 0, fmt.Errorf("lookup user %q: %w", userName, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("uid %q: %w", u.Uid, err)
	}
	gidStr := u.Gid
	if groupName != "" {
		g, err := user.LookupGroup(groupName)
		if err != nil {
			return 0, 0, fmt.Errorf("lookup group %q: %w", groupName, err)
		}
		gidStr = g.Gid
	}
	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return 0, 0, fmt.Errorf("gid %q: %w", gidStr, err)
	}
	return uid, gid, nil
}

// MkdirAll crea path (y padres) y aplica perms y owner sólo al directorio final.
func MkdirAll(path string, opts Options) error {
	uid, gid, err := lookupOwner(opts.User, opts.Group)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, opts.Perm); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	if err := os.Chmod(path, opts.Perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if uid >= 0 {
		if err := os.Chown(path, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", path, err)
		}
	}
	return nil
}
