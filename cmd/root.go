package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/knotx/relayer/config"
	"github.com/knotx/relayer/internal/relayer"
	"github.com/knotx/relayer/pkg/api"
)

var (
	environment string
	configPath  string
	rootCmd     = &cobra.Command{
		Use:   "relayer",
		Short: "Knotx cross-chain message relayer",
		Run:   run,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, args []string) {
	if err := config.LoadEnv(environment); err != nil {
		panic("Failed to load environment variables: " + err.Error())
	}
	config.InitLogger()

	cfg, err := config.Load(environment, configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	service, err := relayer.NewService(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create relayer service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start relayer service")
	}

	server := api.NewServer(service.Listeners, service.Dispatcher.Results())
	go func() {
		if err := server.Start(cfg.API.Port); err != nil {
			log.Error().Err(err).Msg("Operator api stopped with error")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the relayer
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down relayer...")
	cancel()
	service.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down operator api")
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&environment,
		"env",
		"local",
		"Environment name selecting the .env file",
	)
	rootCmd.PersistentFlags().StringVar(
		&configPath,
		"config",
		"data/chains",
		"Directory holding the per-chain JSON config files",
	)
	viper.BindPFlag("env", rootCmd.PersistentFlags().Lookup("env"))
}
