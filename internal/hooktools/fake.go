package hooktools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call es una invocación registrada por FakeRunner.
type Call struct {
	Tool  string
	Args  []string
	Stdin string
}

// FakeRunner responde con salidas fijas por "tool arg arg..." y registra las llamadas.
// Lo usan los tests y el comando `render` en modo dry-run.
type FakeRunner struct {
	mu      sync.Mutex
	Outputs map[string]string
	Calls   []Call
}

func NewFakeRunner() *FakeRunner { return &FakeRunner{Outputs: map[string]string{}} }

func (f *FakeRunner) Run(_ context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Tool: name, Args: args, Stdin: string(stdin)})
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if out, ok := f.Outputs[key]; ok {
		return []byte(out), nil
	}
	switch name {
	case "relation-set", "status-set", "application-version-set":
		return nil, nil
	}
	return nil, fmt.Errorf("fake: no output for %q", key)
}

// CallsTo devuelve las invocaciones de un tool.
func (f *FakeRunner) CallsTo(tool string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Tool == tool {
			out = append(out, c)
		}
	}
	return out
}
