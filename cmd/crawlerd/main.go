// Command crawlerd runs a Mainline DHT crawler that harvests torrent
// metadata from the swarm and writes it to disk.
//
// There is a builtin web server that can be used to scrape Prometheus
// metrics from http://localhost:9191/metrics.
package main

import (
	"fmt"
	"net/http"
	"os"

	"dhtcrawler/config"
	"dhtcrawler/engine"
	"dhtcrawler/fetcher"
	"dhtcrawler/logging"
	"dhtcrawler/metrics"
	"dhtcrawler/sink/filesink"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.New()
	root := &cobra.Command{
		Use:   "crawlerd",
		Short: "Crawl the BitTorrent Mainline DHT and harvest torrent metadata",
	}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the crawler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}
	cfg.BindFlags(runCmd.Flags())
	root.AddCommand(runCmd)
	return root
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.NewJSON(cfg.LogLevel)
	if err != nil {
		return err
	}
	if !cfg.LogJSON {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	sk, err := filesink.New(cfg.SinkDir)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg.Engine, log, m)
	if err != nil {
		return err
	}
	defer eng.Close()

	orch := fetcher.New(eng, sk, eng.SelfID(), cfg.Engine.EnableUTP, m, log)
	defer orch.Close()

	go eng.Run()
	go orch.Run()

	log.WithField("local_addr", eng.LocalAddr().String()).
		WithField("self_id", eng.SelfID().String()).
		Info("crawler started")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.WithField("addr", cfg.MetricsAddr).Info("serving /metrics")
	return http.ListenAndServe(cfg.MetricsAddr, mux)
}
