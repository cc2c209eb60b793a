package main

import (
	"fmt"

	"github.com/gartstein/companydir/internal/directory/config"
	"github.com/gartstein/companydir/internal/directory/controller"
	"github.com/gartstein/companydir/internal/directory/db"
	"github.com/gartstein/companydir/internal/directory/events"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// annotationStore set to "none" skips opening the database.
const annotationStore = "store"

var (
	configPath string

	cfg      *config.Config
	logger   *zap.Logger
	store    *db.Repository
	svc      *controller.DirectoryService
	producer *events.Producer
)

var rootCmd = &cobra.Command{
	Use:          "directoryctl",
	Short:        "Maintain the company directory",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[annotationStore] == "none" {
			return setupConfig()
		}
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
}

func init() {
	logger = zap.NewNop()
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (defaults to $CONFIG_PATH)")
}

func setupConfig() error {
	if cfg != nil {
		return nil
	}
	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded
	return nil
}

// setup opens the store and builds the directory service. Company events
// are published when Kafka brokers are configured.
func setup() error {
	if err := setupConfig(); err != nil {
		return err
	}

	l, err := zap.NewProduction()
	if err != nil {
		return err
	}
	logger = l

	store, err = db.NewRepository(cfg.Database())
	if err != nil {
		return err
	}

	var emitter controller.EventProducer = events.NopProducer{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
		if err != nil {
			return err
		}
		emitter = producer
	}
	svc = controller.NewDirectoryService(store, emitter, logger)
	return nil
}

func teardown() {
	if producer != nil {
		producer.Close()
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close database", zap.Error(err))
		}
	}
	_ = logger.Sync()
}
