// Package main provides the entry point for the harvester CLI
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/corpusworks/harvester/internal/acquisition/batch"
	"github.com/corpusworks/harvester/internal/acquisition/capture"
	"github.com/corpusworks/harvester/internal/acquisition/engine"
	"github.com/corpusworks/harvester/internal/acquisition/policy"
	"github.com/corpusworks/harvester/internal/api"
	"github.com/corpusworks/harvester/internal/enrichment"
	"github.com/corpusworks/harvester/pkg/logging"
	"github.com/corpusworks/harvester/pkg/pipeline"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "harvester",
		Short: "Acquire web content into locally stored datasource artifacts",
		SilenceUsage: true,
	}

	root.AddCommand(captureCmd(), enrichCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func captureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Run one acquisition pass over the input result files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pipeline.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if err := logging.SetupLogger(cfg.Logging); err != nil {
				return fmt.Errorf("setting up logging: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			denylist, err := policy.Load(cfg.Paths.DenylistFile)
			if err != nil {
				return fmt.Errorf("loading denylist: %w", err)
			}

			sessionCfg := capture.DefaultSessionConfig()
			sessionCfg.Headless = cfg.Capture.Headless
			sessionCfg.PageTimeout = cfg.Capture.PageTimeout
			sessionCfg.UserAgent = cfg.Capture.UserAgent
			factory := func(ctx context.Context) (capture.Capturer, error) {
				return capture.NewSession(ctx, sessionCfg)
			}

			client := batch.NewClient(cfg.Scrape.BaseURL, cfg.Scrape.APIKey, cfg.Scrape.HTTPTimeout)
			e := engine.New(cfg, denylist, factory, client)

			var app *fiber.App
			if cfg.StatusAddr != "" {
				app = statusServer(e)
				go func() {
					if err := app.Listen(cfg.StatusAddr); err != nil {
						log.Error().Err(err).Msg("Status server stopped")
					}
				}()
			}

			report, err := e.Run(ctx)
			if app != nil {
				if serr := app.ShutdownWithTimeout(2 * time.Second); serr != nil {
					log.Warn().Err(serr).Msg("Status server shutdown")
				}
			}
			if err != nil {
				return err
			}

			fmt.Println(report.String())
			return nil
		},
	}
}

func enrichCmd() *cobra.Command {
	var model, baseURL, token string
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Generate a Q&A dataset from captured markdown artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pipeline.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if err := logging.SetupLogger(cfg.Logging); err != nil {
				return fmt.Errorf("setting up logging: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			genCfg := enrichment.DefaultGeneratorConfig()
			if baseURL != "" {
				genCfg.BaseURL = baseURL
			}
			if model != "" {
				genCfg.Model = model
			}
			genCfg.AuthToken = token

			path, err := enrichment.NewGenerator(genCfg).GenerateDataset(ctx,
				cfg.Paths.OutputRoot, cfg.Paths.OutputRoot)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "model-url", "", "base URL of the Ollama-compatible backend")
	cmd.Flags().StringVar(&model, "model", "", "model name to generate with")
	cmd.Flags().StringVar(&token, "auth-token", "", "bearer token for the model backend")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the harvester version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("harvester " + version)
		},
	}
}

func statusServer(e *engine.Engine) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(cors.New())
	api.SetupRoutes(app, api.NewHandlers(e, version))
	return app
}
