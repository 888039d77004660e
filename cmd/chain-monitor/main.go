package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"payrouter/internal/accounts"
	"payrouter/internal/chain"
	"payrouter/internal/config"
	"payrouter/internal/country"
	"payrouter/internal/currency"
	"payrouter/internal/db"
	"payrouter/internal/events"
	"payrouter/internal/monitor"
	"payrouter/internal/processor"
	"payrouter/internal/repository"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "Path to config file")
		metricsAddr = flag.String("metrics-addr", ":9102", "Prometheus metrics listen address, empty to disable")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	log := logrus.WithField("component", "chain-monitor")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	database, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	chains, err := chain.NewRegistry(cfg.Blockchain)
	if err != nil {
		log.WithError(err).Fatal("failed to dial networks")
	}
	log.WithField("networks", chains.Names()).Info("networks configured")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reference := repository.NewReferenceRepository(database)
	rates, err := currency.Load(ctx, reference)
	if err != nil {
		log.WithError(err).Fatal("failed to load currency rates")
	}
	countries, err := country.Load(ctx, reference)
	if err != nil {
		log.WithError(err).Fatal("failed to load countries")
	}
	params, err := accounts.LoadProviderParams(ctx, reference, cfg.Transfer)
	if err != nil {
		log.WithError(err).Fatal("failed to load provider parameters")
	}

	var notifier events.Notifier
	if cfg.NATS.URL != "" {
		natsNotifier, err := events.NewNATSNotifier(cfg.NATS)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to NATS")
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
	} else {
		log.Warn("NATS not configured, notifications stay local")
		notifier = events.NewRecorder()
	}

	proc := processor.New(processor.Deps{
		DB:         database,
		Chains:     chains,
		Rates:      rates,
		Countries:  countries,
		Params:     params,
		Notifier:   notifier,
		Transfer:   cfg.Transfer,
		UserUIBase: cfg.UserUIBase,
	})

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.WithField("addr", *metricsAddr).Info("serving metrics")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		log.Info("shutting down")
		cancel()
	}()

	monitor.New(database, chains, proc, cfg.Monitor.IntervalSeconds).Run(ctx)
}
