package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/kafkabroker/internal/brokerconfig"
	"github.com/dropDatabas3/kafkabroker/internal/cluster"
	"github.com/dropDatabas3/kafkabroker/internal/config"
	"github.com/dropDatabas3/kafkabroker/internal/render"
	"github.com/dropDatabas3/kafkabroker/internal/zookeeper"
)

type renderOpts struct {
	configPath string
	out        string
	peers      int
	azs        int
	zookeeper  []string
	hostname   string
	ingress    string
}

// newRenderCmd deriva la configuración en seco a partir de un archivo de opciones.
func newRenderCmd() *cobra.Command {
	var ro renderOpts
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Deriva server/client properties desde un YAML de opciones, sin tocar el host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return runRender(cmd.Context(), cmd.OutOrStdout(), ro)
		},
	}
	f := cmd.Flags()
	f.StringVar(&ro.configPath, "config", "", "YAML/JSON con las opciones del charm")
	f.StringVar(&ro.out, "out", "", "si se indica, escribe los artefactos bajo este directorio")
	f.IntVar(&ro.peers, "peers", 1, "cantidad de brokers del cluster")
	f.IntVar(&ro.azs, "azs", 1, "cantidad de AZs distintas")
	f.StringSliceVar(&ro.zookeeper, "zookeeper", []string{"localhost:2181"}, "servidores host:port de Zookeeper")
	f.StringVar(&ro.hostname, "hostname", "localhost", "hostname de la unidad")
	f.StringVar(&ro.ingress, "ingress", "127.0.0.1", "dirección de ingreso de la unidad")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runRender(ctx context.Context, w io.Writer, ro renderOpts) error {
	o, err := config.Load(ro.configPath)
	if err != nil {
		return err
	}
	dist, err := brokerconfig.ParseDistribution(o.Distribution)
	if err != nil {
		return err
	}
	specs, err := o.ListenerSpecs()
	if err != nil {
		return err
	}
	host := cluster.Host{Hostname: ro.hostname, Ingress: ro.ingress}
	res, err := brokerconfig.Derive(brokerconfig.Input{
		Options:      o,
		Distribution: dist,
		View:         cluster.View{PeerCount: ro.peers, DistinctAZCount: ro.azs, Ready: true},
		Zookeeper:    zookeeper.Endpoint{Servers: ro.zookeeper},
		Listeners:    cluster.LocalListeners(specs, false, o.SASLEnabled()),
		Host:         host,
	})
	if err != nil {
		return err
	}
	if res.Blocked != nil {
		return res.Blocked
	}

	if ro.out == "" {
		fmt.Fprintln(w, "# server.properties")
		_, _ = w.Write(res.Server.Render())
		fmt.Fprintln(w, "# client.properties")
		_, _ = w.Write(res.Client.Render())
		return nil
	}

	tpl, err := render.LoadTemplates()
	if err != nil {
		return err
	}
	paths := render.DefaultPaths(brokerconfig.ServiceName(dist, o)).Under(ro.out)
	arts, err := render.Build(tpl, paths, render.Input{
		Options: o, Caps: dist.Caps(), Derived: res, Hostname: ro.hostname,
	})
	if err != nil {
		return err
	}
	// sin owner: el render en seco no hace chown
	if _, err := render.NewWriter(paths, "", "").Write(ctx, arts); err != nil {
		return err
	}
	fmt.Fprintf(w, "artifacts written under %s\n", ro.out)
	return nil
}
