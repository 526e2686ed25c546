package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"

	"wotkit-dashboard/internal/config"
	"wotkit-dashboard/internal/db"
	"wotkit-dashboard/internal/httpapi"
	"wotkit-dashboard/internal/metrics"
	"wotkit-dashboard/internal/migrate"
	"wotkit-dashboard/internal/modules/sensors"
	"wotkit-dashboard/internal/modules/sensors/dashboard"
	"wotkit-dashboard/internal/modules/sensors/views"
	"wotkit-dashboard/internal/mqtt"
	"wotkit-dashboard/internal/wotkit"
)

const (
	mqttConnectTimeout = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"wotkitURL", cfg.WoTKitURL,
		"wotkitTimeout", cfg.WoTKitTimeout,
		"readingsLimit", cfg.ReadingsLimit,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"logSQL", cfg.LogSQL,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopicPrefix", cfg.MQTTTopicPrefix,
	)

	dbConn, err := db.Open(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if _, err := migrate.Run(dbConn, slog.Default()); err != nil {
		return err
	}
	slog.Info("database ready")

	if err := views.LoadTemplates(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector("wotkit_dashboard"),
	)
	m := metrics.New(reg)

	client := wotkit.NewClient(wotkit.Options{
		BaseURL: cfg.WoTKitURL,
		Timeout: cfg.WoTKitTimeout,
		Logger:  slog.Default(),
		Metrics: m,
	})

	// The broker handle is created up front so /healthz can report it; a nil
	// interface keeps it "disabled".
	var (
		mqttClient *mqtt.Client
		broker     httpapi.BrokerStatus
	)
	if cfg.MQTTEnabled() {
		mqttClient = mqtt.NewClient(mqtt.OptionsFromConfig(cfg), slog.Default())
		broker = mqttClient
	}

	mux := httpapi.NewMux(dbConn, reg, broker)
	feature := sensors.RegisterFeature(mux, dbConn, client, sensors.Options{
		Dashboard: dashboard.Options{
			ReadingsLimit: cfg.ReadingsLimit,
			Timeout:       cfg.WoTKitTimeout,
		},
		Metrics: m,
		Logger:  slog.Default(),
	})

	runCtx, stopDashboard := context.WithCancel(ctx)
	defer stopDashboard()
	dashboardDone := make(chan error, 1)
	go func() { dashboardDone <- feature.Run(runCtx) }()

	if mqttClient != nil {
		// Commands must be set before Connect so the first session subscribes.
		feature.AttachMQTT(mqttClient, slog.Default())
		connectCtx, connectCancel := context.WithTimeout(ctx, mqttConnectTimeout)
		err = mqttClient.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stopDashboard()
		<-dashboardDone
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if mqttClient != nil {
		slog.Info("mqtt disconnecting")
		mqttClient.Disconnect()
	}

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	stopDashboard()
	if err := <-dashboardDone; err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("dashboard stopped", "error", err)
	}

	return ctx.Err()
}
