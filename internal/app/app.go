package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"annotate/internal/config"
	"annotate/internal/models"
	"annotate/internal/services"
	"annotate/internal/store"
	"annotate/internal/store/remote"
)

type App struct {
	Config  *config.Config
	Backend store.Backend

	// --- Initialized Services ---
	ReviewService  *services.ReviewService
	DatasetService *services.DatasetService
}

func NewApp(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	if err := app.initBackend(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		return nil, err
	}

	log.Debug("Application initialization complete.")
	return app, nil
}

// NewAppWithBackend wires the services around an existing backend client.
func NewAppWithBackend(cfg *config.Config, backend store.Backend) (*App, error) {
	app := &App{Config: cfg, Backend: backend}
	if err := app.initServices(); err != nil {
		return nil, err
	}
	return app, nil
}

// --- Private Helper Methods ---

func (a *App) initBackend() error {
	b, err := remote.NewStore(a.Config.Backend.URL, a.Config.Backend.Timeout)
	if err != nil {
		return fmt.Errorf("init backend client: %w", err)
	}
	a.Backend = b
	log.WithField("url", a.Config.Backend.URL).Debug("backend client ready")
	return nil
}

func (a *App) initServices() error {
	sortKey, err := models.ParseSortKey(a.Config.Review.DefaultSort)
	if err != nil {
		return fmt.Errorf("init review service: %w", err)
	}
	a.ReviewService = services.NewReviewService(a.Backend, services.ReviewOptions{
		SaveDelay:        a.Config.Review.SaveDelay,
		WriteTimeout:     a.Config.Backend.Timeout,
		SuggestionLimit:  a.Config.Review.SuggestionLimit,
		GlobalCategories: a.Config.Review.GlobalCategories,
		DefaultSort:      sortKey,
	})
	a.DatasetService = services.NewDatasetService(a.Backend, a.Backend, a.ReviewService)
	return nil
}

// Close flushes pending edits. Safe to call on a partially built App.
func (a *App) Close(ctx context.Context) error {
	if a == nil || a.ReviewService == nil {
		return nil
	}
	if err := a.ReviewService.Close(ctx); err != nil {
		log.WithError(err).Error("Error flushing pending edits")
		return err
	}
	log.Debug("Application closed.")
	return nil
}
