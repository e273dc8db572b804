package app

import (
	"context"

	"dgisync/config"
	"dgisync/internal/controllers"
	"dgisync/internal/database"
	"dgisync/internal/events"
	"dgisync/internal/handlers/middleware"
	"dgisync/internal/jobs"
	"dgisync/internal/repositories"
	"dgisync/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

type App struct {
	Database    database.DB
	Middleware  middleware.Middleware
	EventBus    *events.EventBus
	Config      config.Config
	Services    services.Service
	Repos       repositories.Repository
	Controllers controllers.Controllers
}

// New wires every component. withScheduler registers the ingestion job so
// the long-running server can start it; the one-shot CLI leaves it off.
func New(ctx context.Context, withScheduler bool) (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.New()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	eventBus := events.New(db.Cache.Events)
	repos := repositories.New(db)

	svc, err := services.New(ctx, db, config, eventBus, repos)
	if err != nil {
		_ = db.Close()
		return &App{}, log.Err("failed to create services", err)
	}

	if withScheduler {
		if err := jobs.RegisterAllJobs(svc.Scheduler, config, svc); err != nil {
			_ = db.Close()
			return &App{}, log.Err("failed to register jobs", err)
		}
	}

	app := &App{
		Database:    db,
		Middleware:  middleware.New(config),
		EventBus:    eventBus,
		Config:      config,
		Services:    svc,
		Repos:       repos,
		Controllers: controllers.New(svc),
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")

	nilChecks := map[string]bool{
		"eventBus":       a.EventBus == nil,
		"pipeline":       a.Services.Pipeline == nil,
		"runHistory":     a.Services.RunHistory == nil,
		"scheduler":      a.Services.Scheduler == nil,
		"runsController": a.Controllers.Runs == nil,
	}

	for name, isNil := range nilChecks {
		if isNil {
			return log.Error("nil check failed", "component", name)
		}
	}

	return nil
}

func (a *App) Close() (err error) {
	if a.Services.Scheduler != nil {
		if closeErr := a.Services.Scheduler.Stop(context.Background()); closeErr != nil {
			err = closeErr
		}
	}

	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
