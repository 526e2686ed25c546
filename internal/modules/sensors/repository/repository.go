package repository

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"wotkit-dashboard/internal/modules/sensors/types"
)

//go:embed sql/insert-selection.sql
var insertSelectionSQL string

//go:embed sql/get-recent-selections.sql
var getRecentSelectionsSQL string

//go:embed sql/upsert-known-sensor.sql
var upsertKnownSensorSQL string

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// SelectionRepository stores which sensors were selected and the names seen
// in search results, so history entries can show a name.
type SelectionRepository interface {
	InsertSelection(sensorID string, at time.Time) error
	GetRecentSelections(limit int) ([]types.HistoryEntry, error)
	UpsertSensors(sensors []types.SensorSummary, seenAt time.Time) error
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) SelectionRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertSelection(sensorID string, at time.Time) error {
	if sensorID == "" {
		return fmt.Errorf("insert selection: empty sensor id")
	}
	if _, err := r.db.Exec(insertSelectionSQL, sensorID, at.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("insert selection: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetRecentSelections(limit int) ([]types.HistoryEntry, error) {
	rows, err := r.db.Query(getRecentSelectionsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close selections rows", "error", err)
		}
	}()

	out := []types.HistoryEntry{}
	for rows.Next() {
		var (
			e  types.HistoryEntry
			ts string
		)
		if err := rows.Scan(&e.SensorID, &e.SensorName, &ts); err != nil {
			return nil, err
		}
		e.SelectedAt, err = time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parse selected_at %q: %w", ts, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertSensors records the names of sensors returned by a search in one
// transaction.
func (r *repositoryImpl) UpsertSensors(sensors []types.SensorSummary, seenAt time.Time) error {
	if len(sensors) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("upsert sensors: %w", err)
	}
	seen := seenAt.UTC().Format(timeLayout)
	for _, s := range sensors {
		if _, err := tx.Exec(upsertKnownSensorSQL, string(s.ID), s.Name, s.LongName, seen); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert sensor %q: %w", s.ID, err)
		}
	}
	return tx.Commit()
}
