package service

import (
	"context"
	"sync"
)

// FakeSystemd registra llamadas y devuelve estados programados. Para tests.
type FakeSystemd struct {
	mu sync.Mutex
	// States se consumen en orden; el último se repite.
	States      []string
	RestartErrs []error

	DaemonReloads int
	Restarts      []string
	Enabled       []string
}

func (f *FakeSystemd) DaemonReload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DaemonReloads++
	return nil
}

func (f *FakeSystemd) Restart(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Restarts = append(f.Restarts, unit)
	if len(f.RestartErrs) > 0 {
		err := f.RestartErrs[0]
		f.RestartErrs = f.RestartErrs[1:]
		return err
	}
	return nil
}

func (f *FakeSystemd) Enable(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Enabled = append(f.Enabled, unit)
	return nil
}

func (f *FakeSystemd) ActiveState(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.States) == 0 {
		return "inactive", nil
	}
	s := f.States[0]
	if len(f.States) > 1 {
		f.States = f.States[1:]
	}
	return s, nil
}

func (f *FakeSystemd) Close() {}
