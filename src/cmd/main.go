package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "catalogserv/src/app"
	"catalogserv/src/auth"
	cfg "catalogserv/src/configuration"
	db "catalogserv/src/repository"
	server "catalogserv/src/server"
	"catalogserv/src/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(config *cfg.Properties) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if level >= logrus.DebugLevel {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// newStore opens the store selected by STORE_DRIVER. The caller closes it.
func newStore(ctx context.Context, config *cfg.Properties, logger logrus.FieldLogger) (db.Store, error) {
	if config.StoreDriver == cfg.StoreDriverMemory {
		logger.Warn("using the in-memory store, data is lost on restart")
		return db.NewInMemoryDB(), nil
	}
	store, err := db.NewMongoStore(ctx, config.Mongo)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	return store, nil
}

func setup(ctx context.Context) (*cfg.Properties, *logrus.Logger, db.Store, error) {
	config, err := cfg.ReadProperties()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(config)
	store, err := newStore(ctx, config, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return config, logger, store, nil
}

func closeStore(store db.Store, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		logger.WithError(err).Warn("closing store")
	}
}

var rootCmd = &cobra.Command{
	Use:          "catalogserv",
	Short:        "Collection and item catalogue backend",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		config, logger, store, err := setup(ctx)
		if err != nil {
			return err
		}
		defer closeStore(store, logger)

		if logger.IsLevelEnabled(logrus.DebugLevel) {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}

		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("creating indexes: %w", err)
		}
		states, err := db.NewStateStore(ctx, config)
		if err != nil {
			return fmt.Errorf("creating state store: %w", err)
		}
		images, err := app.NewMinioS3Client(
			config.S3.Host,
			config.S3.AccessKey,
			config.S3.SecretKey,
			config.S3.Bucket,
			config.S3.PublicURL,
			config.S3.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("creating s3 client: %w", err)
		}
		tokens, err := auth.NewTokenManager(config.Auth)
		if err != nil {
			return err
		}
		providers, err := auth.NewProviders(ctx, config.Auth)
		if err != nil {
			return fmt.Errorf("creating login providers: %w", err)
		}
		for _, p := range providers {
			logger.WithField("provider", p.Name()).Info("login provider enabled")
		}

		services := service.New(store, tokens, images, logger)
		handler := server.NewHandler(config, services, providers, states, logger)
		router := server.NewRouter(config, handler, server.NewMetrics(), logger)
		return server.RunServer(ctx, config, router, logger)
	},
}

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the store indexes and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, store, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore(store, logger)

		if err := store.EnsureIndexes(cmd.Context()); err != nil {
			return fmt.Errorf("creating indexes: %w", err)
		}
		logger.Info("indexes are in place")
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
}

var usersPromoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant the admin role to a registered user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, logger, store, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore(store, logger)

		tokens, err := auth.NewTokenManager(config.Auth)
		if err != nil {
			return err
		}
		users := service.NewUserService(store, tokens, logger)
		user, err := users.Promote(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s) is now %s\n", user.Email, user.ID.Hex(), user.Role)
		return nil
	},
}

func init() {
	usersCmd.AddCommand(usersPromoteCmd)
	rootCmd.AddCommand(serveCmd, indexesCmd, usersCmd)
}
