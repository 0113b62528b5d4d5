package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/cosmocart/cosmocart/internal/api"
	"github.com/cosmocart/cosmocart/internal/config"
	"github.com/cosmocart/cosmocart/internal/jobqueue"
	"github.com/cosmocart/cosmocart/internal/nlu"
	"github.com/cosmocart/cosmocart/internal/store"
)

// ServeCommand returns the CLI command for starting the storefront API server.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the CosmoCart API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ValidateServer(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	port := cfg.Server.Port
	if c.Int("port") != 0 {
		port = c.Int("port")
	}

	ctx := context.Background()

	st, err := store.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	classifier, err := nlu.NewClassifier(ctx, nlu.ClassifierOptions{
		Provider:    nlu.Provider(cfg.LLM.Provider),
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to create intent classifier: %w", err)
	}

	categories, err := st.CategoryNames(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not load categories for classifier context")
	}
	samples, err := st.SampleProductNames(ctx, 30)
	if err != nil {
		log.Warn().Err(err).Msg("could not load product samples for classifier context")
	}
	agent := nlu.NewAgent(classifier, st, categories, samples)

	queue, err := jobqueue.NewJobQueue(st.Pool(), st, nil)
	if err != nil {
		return fmt.Errorf("failed to create job queue: %w", err)
	}
	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := queue.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("job queue did not stop cleanly")
		}
	}()

	server := api.NewServer(cfg.Server.Host, port, api.Deps{
		Catalog: st,
		Orders:  st,
		Carts:   st,
		Auth:    st,
		Agent:   agent,
		Queue:   queue,
		Tokens:  api.NewTokenService(cfg.Server.JWTSecret),
	})

	log.Info().Str("host", cfg.Server.Host).Int("port", port).Msg("starting API server")
	return server.Start()
}
