// Command venice-web serves the streaming chat page.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpoz/venice"
	"github.com/jpoz/venice/config"
	"github.com/jpoz/venice/web"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	tools := flag.Bool("tools", false, "let the model look up employees with get_user_info")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := config.NewLogger(os.Stderr, cfg.Logging)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := cfg.NewClient(logger)
	models := client.ModelsOrFallback(ctx)

	mods := []web.Modifier{
		web.WithSampling(cfg.Chat.Sampling()),
		web.WithLogger(logger),
	}
	if *tools {
		dir, err := cfg.NewDirectory()
		if err != nil {
			log.Fatal(err)
		}
		capability, err := dir.Capability()
		if err != nil {
			log.Fatal(err)
		}
		dispatcher, err := venice.NewDispatcher(capability)
		if err != nil {
			log.Fatal(err)
		}
		mods = append(mods, web.WithDispatcher(dispatcher), web.WithSystemPrompt(cfg.SystemPrompt))
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           web.New(client, models, mods...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", slog.Any("error", err))
		}
	}()

	logger.Info("serving chat", slog.String("addr", "http://"+srv.Addr), slog.Int("models", len(models)))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
