package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/term"

	"wotkit-dashboard/internal/migrate"
	"wotkit-dashboard/internal/modules/sensors/dashboard"
	"wotkit-dashboard/internal/modules/sensors/repository"
	"wotkit-dashboard/internal/modules/sensors/tally"
	"wotkit-dashboard/internal/modules/sensors/types"
	"wotkit-dashboard/internal/modules/sensors/viewdata"
	"wotkit-dashboard/internal/tui"
)

const (
	plotWidth  = 60
	plotHeight = 10
)

var headingStyle = styles.NewStyle().Bold(true)

func runSearch(ctx context.Context, out io.Writer) error {
	sensors, err := newClient(newLogger(os.Stderr)).SearchSensors(ctx, *searchText)
	if err != nil {
		return err
	}
	if len(sensors) == 0 {
		_, err = fmt.Fprintln(out, "No sensors found")
		return err
	}
	_, err = fmt.Fprintln(out, sensorTable(sensors))
	return err
}

func runShow(ctx context.Context, out io.Writer) error {
	client := newClient(newLogger(os.Stderr))

	fields, err := client.FetchFields(ctx, *showSensor)
	if err != nil {
		return err
	}
	readings, err := client.FetchReadings(ctx, *showSensor, *showLimit)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, headingStyle.Render("Sensor "+*showSensor))
	point, err := viewdata.BuildMapPoint(viewdata.BuildFieldLookup(fields), dashboard.DefaultMapLabel)
	if err != nil {
		fmt.Fprintf(out, "location unavailable: %v\n", err)
	} else {
		fmt.Fprintf(out, "%s at %s, %s\n", point.Label, viewdata.FormatValue(point.Lat), viewdata.FormatValue(point.Lng))
	}

	fmt.Fprintln(out, tui.ReadingsTable(viewdata.BuildTableRows(readings)))
	if len(readings) == 0 {
		return nil
	}
	fmt.Fprintln(out, headingStyle.Render("Values"))
	fmt.Fprintln(out, tui.LinePlot(viewdata.BuildLineSeries(readings), plotWidth, plotHeight))
	fmt.Fprintln(out, headingStyle.Render("Distribution"))
	_, err = fmt.Fprintln(out, tui.Histogram(viewdata.BuildHistogramBuckets(tally.Count(readings))))
	return err
}

func runHistory(out io.Writer) error {
	logger := newLogger(os.Stderr)
	conn, err := openDB(logger)
	if err != nil {
		return err
	}
	defer closeDB(conn)

	if _, err := migrate.Run(conn, logger); err != nil {
		return err
	}
	history, err := repository.NewRepository(conn).GetRecentSelections(*historyLimit)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		_, err = fmt.Fprintln(out, "No selections recorded")
		return err
	}
	t := table.New().Border(styles.NormalBorder()).Headers("Selected at", "Sensor", "Name")
	for _, h := range history {
		t.Row(h.SelectedAt.Local().Format("2006-01-02 15:04:05"), h.SensorID, h.SensorName)
	}
	_, err = fmt.Fprintln(out, t.String())
	return err
}

func runMigrate(out io.Writer) error {
	logger := newLogger(os.Stderr)
	conn, err := openDB(logger)
	if err != nil {
		return err
	}
	defer closeDB(conn)

	if *migrateStatus {
		all, err := migrate.Status(conn)
		if err != nil {
			return err
		}
		t := table.New().Border(styles.NormalBorder()).Headers("Version", "Name", "Applied")
		for _, m := range all {
			t.Row(m.Version, m.Name, strconv.FormatBool(m.Applied))
		}
		_, err = fmt.Fprintln(out, t.String())
		return err
	}

	applied, err := migrate.Run(conn, logger)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%d migrations applied\n", len(applied))
	return err
}

func runTUI(ctx context.Context) error {
	if !term.IsTerminal(os.Stdin.Fd()) {
		return errors.New("tui needs an interactive terminal")
	}

	renderer := tui.NewRenderer()
	controller := dashboard.New(newClient(newLogger(io.Discard)), renderer, dashboard.Options{
		Timeout: *timeout,
		Logger:  newLogger(io.Discard),
	})

	program := tea.NewProgram(tui.NewModel(controller), tea.WithAltScreen(), tea.WithContext(ctx))
	renderer.Attach(program.Send)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = controller.Run(runCtx) }()

	if _, err := controller.Search(runCtx, ""); err != nil {
		return err
	}
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return ctx.Err()
	}
	return err
}

func sensorTable(sensors []types.SensorSummary) string {
	t := table.New().Border(styles.NormalBorder()).Headers("ID", "Name", "Long name", "Description")
	for _, s := range sensors {
		t.Row(string(s.ID), s.Name, s.LongName, s.Description)
	}
	return t.String()
}
