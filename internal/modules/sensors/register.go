// Package sensors wires the sensor dashboard feature: the view store, the
// dashboard controller, the selection history and the HTTP routes.
package sensors

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"wotkit-dashboard/internal/metrics"
	"wotkit-dashboard/internal/modules/sensors/controller"
	"wotkit-dashboard/internal/modules/sensors/dashboard"
	"wotkit-dashboard/internal/modules/sensors/repository"
	"wotkit-dashboard/internal/modules/sensors/service"
	"wotkit-dashboard/internal/modules/sensors/views"
)

type Options struct {
	Dashboard dashboard.Options
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type Feature struct {
	Store     *views.Store
	Dashboard *dashboard.Controller
	Service   *service.Service
}

func RegisterFeature(mux *http.ServeMux, db *sql.DB, client dashboard.Client, opts Options) *Feature {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dashboard.Logger == nil {
		opts.Dashboard.Logger = opts.Logger
	}
	if opts.Dashboard.Metrics == nil {
		opts.Dashboard.Metrics = opts.Metrics
	}

	store := views.NewStore(views.StoreOptions{Metrics: opts.Metrics})
	selectionRepository := repository.NewRepository(db)
	dashboardController := dashboard.New(client, store, opts.Dashboard)
	selectionService := service.NewService(dashboardController, selectionRepository, opts.Logger)
	store.Subscribe(selectionService.RememberSensors)

	sensorsController := controller.NewSensorsController(selectionService, store, selectionRepository)
	sensorsController.RegisterRoutes(mux)

	return &Feature{Store: store, Dashboard: dashboardController, Service: selectionService}
}

// Run drives the dashboard and the sensor name writer until ctx is done.
func (f *Feature) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	writer := make(chan struct{})
	go func() {
		defer close(writer)
		f.Service.Run(ctx)
	}()

	err := f.Dashboard.Run(ctx)
	cancel()
	<-writer
	return err
}
