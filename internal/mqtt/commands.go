package mqtt

import (
	"context"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	commandSelect  = "select"
	commandSearch  = "search"
	commandTimeout = 5 * time.Second
)

// Commands receives dashboard actions published on <prefix>/commands/select
// (payload: sensor id or name) and <prefix>/commands/search (payload: query
// text). Either may be nil.
type Commands struct {
	Select func(ctx context.Context, sensorID string) error
	Search func(ctx context.Context, query string) error
}

// SetCommands installs the command handlers. Call before Connect so the
// subscription is made as soon as the session is up.
func (c *Client) SetCommands(cmds Commands) {
	c.mu.Lock()
	c.commands = cmds
	c.mu.Unlock()
	if c.IsConnected() {
		c.subscribeCommands()
	}
}

func (c *Client) hasCommands() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.commands.Select != nil || c.commands.Search != nil
}

func (c *Client) commandTopics() []string {
	return []string{c.Topic("commands", commandSelect), c.Topic("commands", commandSearch)}
}

func (c *Client) subscribeCommands() {
	filters := make(map[string]byte, 2)
	for _, t := range c.commandTopics() {
		filters[t] = qos
	}
	token := c.client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleCommand(msg.Topic(), msg.Payload())
	})
	c.await("subscribe", strings.Join(c.commandTopics(), ","), token)
}

func (c *Client) handleCommand(topic string, payload []byte) {
	c.mu.RLock()
	cmds := c.commands
	c.mu.RUnlock()

	arg := strings.TrimSpace(string(payload))
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch topic {
	case c.Topic("commands", commandSelect):
		if cmds.Select == nil {
			return
		}
		if arg == "" {
			c.logger.Warn("ignoring select command without sensor id", "topic", topic)
			return
		}
		err = cmds.Select(ctx, arg)
	case c.Topic("commands", commandSearch):
		if cmds.Search == nil {
			return
		}
		err = cmds.Search(ctx, arg)
	default:
		c.logger.Debug("ignoring message on unknown topic", "topic", topic)
		return
	}
	if err != nil {
		c.logger.Error("mqtt command failed", "topic", topic, "arg", arg, "error", err)
		return
	}
	c.logger.Debug("mqtt command handled", "topic", topic, "arg", arg)
}
