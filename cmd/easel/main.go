package main

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/easel-cli/internal/api"
	"github.com/glabrego/easel-cli/internal/app"
	"github.com/glabrego/easel-cli/internal/config"
	"github.com/glabrego/easel-cli/internal/logging"
	"github.com/glabrego/easel-cli/internal/metrics"
	"github.com/glabrego/easel-cli/internal/tui"
)

func main() {
	if err := config.LoadDotEnv(""); err != nil {
		log.Fatalf("dotenv error: %v", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, logCloser, err := logging.New(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logging init error: %v", err)
	}
	defer logCloser.Close()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "addr", cfg.MetricsAddr, "err", err)
			}
		}()
		defer srv.Close()
	}

	burst := max(1, int(math.Ceil(cfg.RateLimit)))
	client := api.NewClient(cfg.APIBaseURL, cfg.Token, nil, api.WithRateLimit(cfg.RateLimit, burst))
	session := app.NewSession(client, app.Options{
		PageSize:  cfg.PageSize,
		Columns:   cfg.Columns,
		ItemWidth: cfg.ColumnWidth,
		LikedFeed: cfg.LikedFeed,
		Logger:    logger,
		Metrics:   m,
	})
	logger.Info("starting", "api", cfg.APIBaseURL, "authenticated", cfg.Authenticated(), "columns", cfg.Columns)

	model := tui.NewModel(session, tui.Options{Columns: cfg.Columns, ItemWidth: cfg.ColumnWidth})
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, runErr := program.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Close(ctx); err != nil {
		logger.Warn("telemetry flush incomplete", "err", err)
	}
	if runErr != nil {
		log.Fatalf("tui error: %v", runErr)
	}
}
