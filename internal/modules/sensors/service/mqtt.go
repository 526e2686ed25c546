package service

import (
	"context"

	"wotkit-dashboard/internal/mqtt"
)

// Commands exposes Select and Search as MQTT command handlers.
func (s *Service) Commands() mqtt.Commands {
	return mqtt.Commands{
		Select: func(ctx context.Context, sensorID string) error {
			_, err := s.Select(ctx, sensorID)
			return err
		},
		Search: func(ctx context.Context, query string) error {
			_, err := s.Search(ctx, query)
			return err
		},
	}
}
