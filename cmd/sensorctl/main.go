package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/lmittmann/tint"
	"github.com/prometheus/common/version"

	"wotkit-dashboard/internal/config"
	"wotkit-dashboard/internal/db"
	"wotkit-dashboard/internal/wotkit"
)

const appName = "sensorctl"

var (
	app = kingpin.New(appName, "Query WoTKit sensors and manage the dashboard database.")

	wotkitURL = app.Flag("wotkit.url", "WoTKit API base URL.").Envar("WOTKIT_URL").Default(wotkit.DefaultBaseURL).URL()
	timeout   = app.Flag("wotkit.timeout", "Per-request timeout.").Envar("WOTKIT_TIMEOUT").Default("10s").Duration()
	dbPath    = app.Flag("db.path", "SQLite database path.").Envar("SQLITE_PATH").Default("../dev/sqlite/app.db").String()
	logLevel  = app.Flag("log.level", "Log level (debug, info, warn, error).").Default("warn").Enum("debug", "info", "warn", "error")

	searchCmd  = app.Command("search", "Search sensors by text.")
	searchText = searchCmd.Arg("text", "Search text; empty lists all sensors.").String()

	showCmd    = app.Command("show", "Show fields, readings and charts for one sensor.")
	showSensor = showCmd.Arg("sensor", "Sensor id or name.").Required().String()
	showLimit  = showCmd.Flag("limit", "Number of readings to fetch.").Default("10").Int()

	historyCmd   = app.Command("history", "List recent sensor selections.")
	historyLimit = historyCmd.Flag("limit", "Number of selections to list.").Default("20").Int()

	migrateCmd    = app.Command("migrate", "Apply pending schema migrations.")
	migrateStatus = migrateCmd.Flag("status", "Only list migrations and whether they are applied.").Bool()

	tuiCmd = app.Command("tui", "Run the interactive dashboard in the terminal.")
)

func main() {
	app.Version(version.Print(appName))
	app.HelpFlag.Short('h')
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case searchCmd.FullCommand():
		err = runSearch(ctx, os.Stdout)
	case showCmd.FullCommand():
		err = runShow(ctx, os.Stdout)
	case historyCmd.FullCommand():
		err = runHistory(os.Stdout)
	case migrateCmd.FullCommand():
		err = runMigrate(os.Stdout)
	case tuiCmd.FullCommand():
		err = runTUI(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(*logLevel))
	return slog.New(tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen}))
}

func newClient(logger *slog.Logger) *wotkit.Client {
	return wotkit.NewClient(wotkit.Options{
		BaseURL: (*wotkitURL).String(),
		Timeout: *timeout,
		Logger:  logger,
	})
}

// openDB opens the same database the server uses, with the server's SQLite
// settings.
func openDB(logger *slog.Logger) (*sql.DB, error) {
	return db.Open(config.Config{
		Driver:       "sqlite3",
		Path:         *dbPath,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
}

func closeDB(conn *sql.DB) {
	if err := db.Close(conn); err != nil {
		slog.Error("db close", "err", err)
	}
}
