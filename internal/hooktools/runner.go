// Package hooktools envuelve los binarios que el agente expone a cada hook
// (relation-get, relation-set, is-leader, status-set, config-get, network-get, ...).
//
// Las lecturas se memoizan durante el dispatch con go-cache; cualquier escritura
// invalida la memo completa porque el agente no ofrece granularidad más fina.
package hooktools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner ejecuta un hook tool y devuelve su stdout.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// ExecRunner ejecuta los hook tools como procesos hijos. Dir vacío = $PATH.
type ExecRunner struct {
	Dir string
}

func (r ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	bin := name
	if r.Dir != "" {
		bin = r.Dir + "/" + name
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &ToolError{Tool: name, Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.Bytes(), nil
}

// ToolError conserva el stderr del tool para el log del hook.
type ToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }
