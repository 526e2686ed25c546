package sensors

import (
	"errors"
	"log/slog"

	"wotkit-dashboard/internal/modules/sensors/views"
	"wotkit-dashboard/internal/mqtt"
)

// ViewPublisher is implemented by *mqtt.Client.
type ViewPublisher interface {
	PublishView(kind string, instance any) error
	SetCommands(cmds mqtt.Commands)
}

// AttachMQTT broadcasts every view replacement and accepts select and search
// commands. Call it before connecting so commands are subscribed on connect.
func (f *Feature) AttachMQTT(p ViewPublisher, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	p.SetCommands(f.Service.Commands())
	f.Store.Subscribe(func(inst views.Instance) {
		err := p.PublishView(string(inst.Kind), inst)
		if err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			logger.Warn("publish view failed", "view", inst.Kind, "error", err)
		}
	})
}
