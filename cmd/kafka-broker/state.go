package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/kafkabroker/internal/keystore"
	"github.com/dropDatabas3/kafkabroker/internal/security/secretbox"
	"github.com/dropDatabas3/kafkabroker/internal/state"
)

// newStateCmd muestra el estado local de la unidad. Abrir la base aplica las
// migraciones pendientes, así que también sirve para migrar antes de un upgrade.
func newStateCmd() *cobra.Command {
	var dir string
	var history int
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Muestra el estado local de la unidad y los últimos dispatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return runState(cmd.Context(), cmd.OutOrStdout(), dir, history)
		},
	}
	cmd.Flags().StringVar(&dir, "charm-dir", ".", "directorio del charm (JUJU_CHARM_DIR)")
	cmd.Flags().IntVar(&history, "history", 10, "cantidad de dispatches a listar")
	return cmd
}

func runState(ctx context.Context, w io.Writer, dir string, history int) error {
	box, err := secretbox.LoadOrCreate(filepath.Join(dir, state.KeyFileName))
	if err != nil {
		return err
	}
	st, err := state.Open(ctx, filepath.Join(dir, state.FileName), box)
	if err != nil {
		return err
	}
	defer st.Close()

	cur, err := st.Load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "version:     %d\n", cur.Version)
	fmt.Fprintf(w, "installed:   %t\n", cur.Installed)
	fmt.Fprintf(w, "app version: %s\n", cur.AppVersion)
	// nunca se imprimen claves ni passwords
	for _, dom := range []keystore.Domain{keystore.Broker, keystore.Zookeeper} {
		b := cur.Bundle(dom)
		mode := string(b.Mode)
		if mode == "" {
			mode = "unset"
		}
		fmt.Fprintf(w, "keystore %-9s mode=%s trusted=%d\n", dom, mode, len(b.TrustedFingerprints))
	}

	recs, err := st.RecentDispatches(ctx, history)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tHOOK\tOUTCOME\tVERSION\tRUN")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.FinishedAt, r.Hook, r.Outcome, r.Version, r.RunID)
	}
	return tw.Flush()
}
