package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/kafkabroker/internal/charm"
)

// newEventsCmd lista los eventos que el charm atiende; el resto se ignora.
func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Lista los eventos que el charm atiende",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			listEvents(cmd.OutOrStdout(), charm.New(charm.Deps{}).Registry())
		},
	}
}

func listEvents(w io.Writer, r charm.Registry) {
	events := r.Events()
	slices.Sort(events)
	for _, e := range events {
		fmt.Fprintln(w, e)
	}
}
