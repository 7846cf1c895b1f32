// Command kafka-broker es el entrypoint del charm: el agente lo ejecuta por cada hook.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/kafkabroker/internal/charm"
	"github.com/dropDatabas3/kafkabroker/internal/config"
	"github.com/dropDatabas3/kafkabroker/internal/hooktools"
	"github.com/dropDatabas3/kafkabroker/internal/keystore"
	"github.com/dropDatabas3/kafkabroker/internal/observability/logger"
	"github.com/dropDatabas3/kafkabroker/internal/relation"
	"github.com/dropDatabas3/kafkabroker/internal/security/secretbox"
	"github.com/dropDatabas3/kafkabroker/internal/service"
	"github.com/dropDatabas3/kafkabroker/internal/state"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "kafka-broker",
	Short: "Kafka broker charm",
	Long: `Kafka broker charm.
Sin subcomando atiende el hook indicado por JUJU_DISPATCH_PATH (o JUJU_HOOK_NAME).`,
	PersistentPreRun: func(*cobra.Command, []string) {
		if envFile == "" {
			return
		}
		if _, err := os.Stat(envFile); errors.Is(err, fs.ErrNotExist) {
			return
		}
		_ = godotenv.Load(envFile)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return runHook(cmd.Context(), "")
	},
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Atiende el hook de JUJU_DISPATCH_PATH",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return runHook(cmd.Context(), "")
	},
}

var hookCmd = &cobra.Command{
	Use:   "hook <event>",
	Short: "Atiende un evento explícito (install, config-changed, ...)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runHook(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "archivo .env opcional")
	rootCmd.AddCommand(dispatchCmd, hookCmd, newRenderCmd(), newStateCmd(), newEventsCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runHook arma las dependencias de producción y despacha event ("" => el del entorno).
func runHook(ctx context.Context, event string) error {
	env, err := config.LoadHookEnv()
	if err != nil {
		return err
	}
	if event == "" {
		event = env.Event()
	}
	if event == "" {
		return errors.New("no hook: set JUJU_DISPATCH_PATH or pass `hook <event>`")
	}

	logger.Init(logger.Config{Env: env.LogEnv, Level: env.LogLevel, Unit: env.UnitName})
	defer func() { _ = logger.Sync() }()

	runID := uuid.NewString()
	log := logger.L().With(logger.RunID(runID))
	if env.RelationName != "" {
		log = log.With(logger.Relation(env.RelationID), logger.RemoteUnit(env.RemoteUnit))
	}
	ctx = logger.ToContext(ctx, log)

	box, err := secretbox.LoadOrCreate(filepath.Join(env.CharmDir, state.KeyFileName))
	if err != nil {
		return err
	}
	st, err := state.Open(ctx, filepath.Join(env.CharmDir, state.FileName), box)
	if err != nil {
		return err
	}
	defer st.Close()

	sd, err := service.DialDBus(ctx)
	if err != nil {
		return err
	}
	defer sd.Close()

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("hostname: %w", err)
	}

	runner := hooktools.ExecRunner{}
	tools := hooktools.New(runner)
	c := charm.New(charm.Deps{
		Env:       env,
		RunID:     runID,
		Hostname:  hostname,
		Platform:  tools,
		Relations: relation.NewHookStore(tools, env.UnitName),
		State:     st,
		Issuer:    keystore.DefaultIssuer(),
		Installer: charm.AptInstaller{Runner: runner},
		Systemd:   sd,
	})
	return c.Dispatch(ctx, event)
}
