package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// HookEnv es el entorno que el agente de la plataforma exporta a cada hook.
type HookEnv struct {
	UnitName         string `env:"JUJU_UNIT_NAME"`
	ModelName        string `env:"JUJU_MODEL_NAME"`
	AvailabilityZone string `env:"JUJU_AVAILABILITY_ZONE"`
	CharmDir         string `env:"JUJU_CHARM_DIR" envDefault:"."`
	DispatchPath     string `env:"JUJU_DISPATCH_PATH"`
	HookName         string `env:"JUJU_HOOK_NAME"`
	RelationName     string `env:"JUJU_RELATION"`
	RelationID       string `env:"JUJU_RELATION_ID"`
	RemoteUnit       string `env:"JUJU_REMOTE_UNIT"`
	RemoteApp        string `env:"JUJU_REMOTE_APP"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogEnv   string `env:"LOG_ENV" envDefault:"prod"`
}

// LoadHookEnv parsea el entorno del proceso.
func LoadHookEnv() (HookEnv, error) {
	h, err := env.ParseAs[HookEnv]()
	if err != nil {
		return HookEnv{}, fmt.Errorf("hook env: %w", err)
	}
	return h, nil
}

// AppName devuelve la aplicación de la unidad ("kafka/0" => "kafka").
func (h HookEnv) AppName() string {
	if i := strings.IndexByte(h.UnitName, '/'); i > 0 {
		return h.UnitName[:i]
	}
	return h.UnitName
}

// Event devuelve el nombre del evento: JUJU_DISPATCH_PATH ("hooks/config-changed")
// tiene prioridad sobre JUJU_HOOK_NAME.
func (h HookEnv) Event() string {
	if h.DispatchPath != "" {
		return filepath.Base(h.DispatchPath)
	}
	return h.HookName
}
