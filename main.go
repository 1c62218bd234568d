// Personal event-calendar service: JWT auth, ownership-scoped event CRUD,
// day-view layout projections, and natural-language event creation through a
// language-model provider with a per-user daily quota.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/andre-gcosta/App-Gestao-de-Eventos/extract"
	"github.com/andre-gcosta/App-Gestao-de-Eventos/llm"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	log.Printf("connected to postgres")

	if err := ensureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("timezone %q: %v", cfg.Timezone, err)
	}

	provider, err := newProvider(cfg.LLMProvider)
	if err != nil {
		log.Fatalf("llm provider: %v", err)
	}
	client := llm.New(provider, llm.Options{Model: cfg.LLMModel, MaxTokens: 300})
	extractor := extract.New(client, extract.Options{
		Timeout: time.Duration(cfg.ExtractTimeoutSec) * time.Second,
	})

	requests := NewPgRequestLog(pool)
	srv := &server{
		users:     NewPgUserStore(pool),
		events:    NewPgEventStore(pool),
		quota:     &dailyQuota{counter: requests, limit: cfg.DailyQuota},
		extractor: extractor,
		secret:    []byte(cfg.JWTSecret),
		tokenTTL:  time.Duration(cfg.TokenTTLHours) * time.Hour,
		loc:       loc,
		now:       time.Now,
	}

	janitor := startJanitor(ctx, requests)
	defer janitor.Stop()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s (provider=%s model=%s)", cfg.Listen, cfg.LLMProvider, cfg.LLMModel)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Printf("bye")
}

func newProvider(name string) (llm.Provider, error) {
	switch name {
	case "anthropic":
		return llm.NewAnthropicProvider(nil)
	case "openai":
		return llm.NewOpenAIProvider(nil)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
