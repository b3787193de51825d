package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/studysage/sage/config"
	"github.com/studysage/sage/internal/articles"
	"github.com/studysage/sage/internal/assistant"
	"github.com/studysage/sage/internal/llm"
	"github.com/studysage/sage/internal/retrieval"
	"github.com/studysage/sage/internal/search"
	"github.com/studysage/sage/internal/server"
	"github.com/studysage/sage/internal/store"
	"github.com/studysage/sage/internal/telemetry"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default: sage.json in . or ./config)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := log.New(os.Stdout, "[sage] ", log.LstdFlags)
	tele := telemetry.New(log.New(os.Stdout, "[metrics] ", log.LstdFlags))

	gen := buildGenerator(cfg.Generator)
	tools := buildToolset(cfg.Tools, tele)

	var rdb *redis.Client
	if cfg.Storage.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr, err)
		}
		defer rdb.Close()
	}
	arts := articles.New(rdb, articles.Options{
		TTL:          cfg.Articles.TTL,
		FetchTimeout: cfg.Articles.FetchTimeout,
		Logger:       log.New(os.Stdout, "[articles] ", log.LstdFlags),
	})

	var st *store.Store
	if dsn := cfg.Storage.Postgres.DSN(); dsn != "" {
		if err := server.Migrate("", dsn, "up", 0); err != nil {
			logger.Printf("migrate: %v", err)
		}
		s, err := store.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("postgres connection failed: %w", err)
		}
		st = s
		defer st.Close()
	}

	var retr *retrieval.Store
	if cfg.Retrieval.Enabled {
		retr = retrieval.New(cfg.Retrieval.MaxSessions, cfg.Retrieval.SessionTTL,
			log.New(os.Stdout, "[retrieval] ", log.LstdFlags))
	}

	deps := assistant.Deps{
		Generator: gen,
		Tools:     tools,
		Articles:  arts,
		Telemetry: tele,
		Logger:    log.New(os.Stdout, "[pipeline] ", log.LstdFlags),
	}
	if retr != nil {
		deps.Retriever = retr
	}
	pipe, err := assistant.New(pipelineConfig(cfg), deps)
	if err != nil {
		return err
	}

	var secret []byte
	if cfg.Server.JWTSecret != "" {
		secret = []byte(cfg.Server.JWTSecret)
	} else {
		logger.Printf("no jwt secret configured; /api is open")
	}

	srv, err := server.New(server.Options{
		Address:     cfg.Server.Address,
		JWTSecret:   secret,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log.New(os.Stdout, "[http] ", log.LstdFlags),
	}, server.Deps{Pipeline: pipe, Store: st, Retrieval: retr, Telemetry: tele})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Printf("shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func pipelineConfig(cfg *config.Config) assistant.Config {
	return assistant.Config{
		Budget:         cfg.Pipeline.Budget,
		MinWebBudget:   cfg.Pipeline.MinWebBudget,
		ForceWeb:       cfg.Tools.ForceWeb,
		ForceImages:    cfg.Tools.ForceImages,
		ForceVideos:    cfg.Tools.ForceVideos,
		WebResultCount: cfg.Pipeline.WebResults,
		ImageCount:     cfg.Pipeline.Images,
		VideoCount:     cfg.Pipeline.Videos,
		ReviseRatio:    cfg.Pipeline.ReviseRatio,
		ReviseMinChars: cfg.Pipeline.ReviseMinChars,
		HistoryTurns:   cfg.Pipeline.HistoryTurns,
		Evidence: assistant.EvidenceLimits{
			MaxSources:  cfg.Pipeline.MaxSources,
			MaxExcerpts: cfg.Pipeline.MaxExcerpts,
			MaxChars:    cfg.Pipeline.EvidenceChars,
		},
		CasualTones:       cfg.Pipeline.CasualTones,
		RetrievalSnippets: cfg.Pipeline.RetrievalSnippets,
	}
}

func buildGenerator(cfg config.GeneratorConfig) llm.Generator {
	if cfg.Mode == "job" {
		return llm.NewJobClient(cfg.Job.SubmitURL, cfg.Job.StatusURL, llm.JobOptions{
			APIKey:       cfg.APIKey,
			MaxWait:      cfg.Job.MaxWait,
			PollInterval: cfg.Job.PollInterval,
			PollStep:     cfg.Job.PollStep,
			PollCap:      cfg.Job.PollCap,
		})
	}
	return llm.NewOpenAIClient(cfg.APIKey, llm.OpenAIOptions{
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	})
}

func buildToolset(cfg config.ToolsConfig, tele *telemetry.Telemetry) *search.Toolset {
	var web []search.WebSearcher
	var images, videos search.MediaSearcher
	if cfg.Serper.Active() {
		sp := search.NewSerper(cfg.Serper.APIKey)
		web = append(web, sp)
		images = search.SerperImages{Serper: sp}
		videos = search.SerperVideos{Serper: sp}
	}
	if cfg.Tavily.Active() {
		web = append(web, search.NewTavily(cfg.Tavily.APIKey))
	}
	return search.NewToolset(web, images, videos, search.Options{
		CacheTTL:    cfg.CacheTTL,
		CallTimeout: cfg.CallTimeout,
		Telemetry:   tele,
		Logger:      log.New(os.Stdout, "[tools] ", log.LstdFlags),
	})
}
