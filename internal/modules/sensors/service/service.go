// Package service records what the dashboard does: selections go to the
// history and sensor names seen in search results are remembered.
package service

import (
	"context"
	"log/slog"
	"time"

	"wotkit-dashboard/internal/modules/sensors/repository"
	"wotkit-dashboard/internal/modules/sensors/types"
	"wotkit-dashboard/internal/modules/sensors/views"
)

type Dashboard interface {
	Select(ctx context.Context, sensorID string) (types.Selection, error)
	Search(ctx context.Context, query string) (uint64, error)
}

// sensorWriteQueue bounds the sensor lists waiting to be stored.
const sensorWriteQueue = 16

type Service struct {
	dashboard    Dashboard
	repository   repository.SelectionRepository
	logger       *slog.Logger
	now          func() time.Time
	sensorWrites chan []types.SensorSummary
}

func NewService(d Dashboard, repo repository.SelectionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		dashboard:    d,
		repository:   repo,
		logger:       logger,
		now:          time.Now,
		sensorWrites: make(chan []types.SensorSummary, sensorWriteQueue),
	}
}

// Select starts a selection and records it in the history. A failed history
// write is logged; the selection has already started by then.
func (s *Service) Select(ctx context.Context, sensorID string) (types.Selection, error) {
	sel, err := s.dashboard.Select(ctx, sensorID)
	if err != nil {
		return types.Selection{}, err
	}
	if err := s.repository.InsertSelection(sel.SensorID, sel.SelectedAt); err != nil {
		s.logger.Error("record selection failed", "sensor_id", sel.SensorID, "error", err)
	}
	return sel, nil
}

func (s *Service) Search(ctx context.Context, query string) (uint64, error) {
	return s.dashboard.Search(ctx, query)
}

// RememberSensors is a views.Listener that queues the names of sensors shown
// in the sensor list for Run to store. It never waits on the database; a
// list arriving while the queue is full is dropped.
func (s *Service) RememberSensors(inst views.Instance) {
	if inst.Kind != views.KindSensorList {
		return
	}
	list, ok := inst.Data.(views.SensorList)
	if !ok || len(list.Sensors) == 0 {
		return
	}
	select {
	case s.sensorWrites <- list.Sensors:
	default:
		s.logger.Warn("sensor name queue full, dropping list", "count", len(list.Sensors))
	}
}

// Run stores queued sensor lists until ctx is done, then flushes the rest.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case sensors := <-s.sensorWrites:
			s.upsertSensors(sensors)
		case <-ctx.Done():
			for {
				select {
				case sensors := <-s.sensorWrites:
					s.upsertSensors(sensors)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) upsertSensors(sensors []types.SensorSummary) {
	if err := s.repository.UpsertSensors(sensors, s.now()); err != nil {
		s.logger.Error("remember sensors failed", "count", len(sensors), "error", err)
	}
}
