package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"feeflow/config"
	"feeflow/db"
	"feeflow/feeagreement"
	"feeflow/storage"
	"feeflow/webhookapi"
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

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("bootstrap database pool")
	}
	defer pool.Close()

	files, err := storage.NewLocal(cfg.Storage.Root, cfg.Storage.BaseURL)
	if err != nil {
		log.WithError(err).Fatal("bootstrap file storage")
	}

	rules := feeagreement.Rules{
		DefaultFeePercentage: cfg.Rules.DefaultFeePercentage,
		DefaultGuaranteeDays: cfg.Rules.DefaultGuaranteeDays,
	}
	repo := feeagreement.NewRepository(pool, rules)
	processor := feeagreement.NewWebhookProcessor(repo, files, log)
	handler := webhookapi.NewHandler(processor, cfg.Webhook.Secret, log)

	log.WithField("addr", cfg.Webhook.Addr).Info("webhook receiver listening")
	if err := http.ListenAndServe(cfg.Webhook.Addr, handler.Router()); err != nil {
		log.WithError(err).Fatal("http server stopped")
	}
}
