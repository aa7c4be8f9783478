package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"feeflow/config"
	"feeflow/db"
	"feeflow/esign"
	"feeflow/feeagreement"
	"feeflow/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("FEEFLOW_CONFIG"), "path to config file")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("bootstrap database pool")
	}
	defer pool.Close()

	key, err := os.ReadFile(cfg.DocuSign.PrivateKeyPath)
	if err != nil {
		log.WithError(err).Fatal("read provider private key")
	}
	client, err := esign.NewRESTClient(esign.RESTConfig{
		BaseURL:           cfg.DocuSign.BaseURL,
		OAuthBaseURL:      cfg.DocuSign.OAuthBaseURL,
		AccountID:         cfg.DocuSign.AccountID,
		IntegrationKey:    cfg.DocuSign.IntegrationKey,
		UserID:            cfg.DocuSign.UserID,
		PrivateKeyPEM:     key,
		RequestsPerSecond: cfg.DocuSign.RequestsPerSecond,
	})
	if err != nil {
		log.WithError(err).Fatal("bootstrap provider client")
	}

	files, err := storage.NewLocal(cfg.Storage.Root, cfg.Storage.BaseURL)
	if err != nil {
		log.WithError(err).Fatal("bootstrap file storage")
	}

	rules := feeagreement.Rules{
		DefaultFeePercentage: cfg.Rules.DefaultFeePercentage,
		DefaultGuaranteeDays: cfg.Rules.DefaultGuaranteeDays,
	}
	repo := feeagreement.NewRepository(pool, rules)
	ingester := feeagreement.NewIngester(client, repo, log)
	reconciler := feeagreement.NewReconciler(repo, client, files, log)
	poller := feeagreement.NewPoller(repo, ingester, reconciler, log)

	c := cron.New()
	if _, err := c.AddFunc(cfg.Poller.Schedule, func() {
		if err := poller.ProcessPending(ctx); err != nil {
			log.WithError(err).Error("poll cycle failed")
		}
	}); err != nil {
		log.WithError(err).Fatal("register poll schedule")
	}

	log.WithField("schedule", cfg.Poller.Schedule).Info("poller started")
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("poller stopped")
}
