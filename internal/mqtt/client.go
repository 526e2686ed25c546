// Package mqtt connects the dashboard to an MQTT broker: view replacements are
// broadcast as retained messages and select/search commands are accepted on
// command topics.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"wotkit-dashboard/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var (
	ErrStopped      = errors.New("mqtt client stopped")
	ErrNotConnected = errors.New("mqtt client not connected")
)

const (
	qos            = byte(1)
	tokenTimeout   = 5 * time.Second
	disconnectWait = 250 // ms
)

type Options struct {
	Broker      string
	Port        int
	ClientID    string
	TopicPrefix string
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Broker:      cfg.MQTTBroker,
		Port:        cfg.MQTTPort,
		ClientID:    cfg.MQTTClientID,
		TopicPrefix: cfg.MQTTTopicPrefix,
	}
}

type Client struct {
	client mqtt.Client
	opts   Options
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool
	commands  Commands

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		opts:   opts,
		logger: logger.With("component", "mqtt"),
		stopCh: make(chan struct{}),
	}

	po := mqtt.NewClientOptions()
	po.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port))
	po.SetClientID(opts.ClientID)
	po.SetCleanSession(true)
	po.SetAutoReconnect(true)
	po.SetConnectRetry(true)
	po.SetConnectRetryInterval(5 * time.Second)
	po.SetMaxReconnectInterval(60 * time.Second)
	po.SetKeepAlive(30 * time.Second)
	po.SetPingTimeout(10 * time.Second)
	po.SetOnConnectHandler(func(_ mqtt.Client) { c.onConnect() })
	po.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		c.logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(po)
	return c
}

// Connect waits for the initial connection, honouring ctx and Disconnect.
// Reconnects after that are handled by paho.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}
	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			c.client.Disconnect(0)
			return ctx.Err()
		case <-c.stopCh:
			c.client.Disconnect(0)
			return ErrStopped
		default:
		}
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client. Idempotent; Connect fails with ErrStopped
// afterwards.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.client != nil {
		if c.IsConnected() && c.hasCommands() {
			c.client.Unsubscribe(c.commandTopics()...).WaitTimeout(2 * time.Second)
		}
		c.client.Disconnect(disconnectWait)
	}
	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

// Topic joins parts under the configured prefix.
func (c *Client) Topic(parts ...string) string {
	if c.opts.TopicPrefix == "" {
		return strings.Join(parts, "/")
	}
	return c.opts.TopicPrefix + "/" + strings.Join(parts, "/")
}

func (c *Client) onConnect() {
	c.setConnected(true)
	c.logger.Info("mqtt connected", "broker", c.opts.Broker, "port", c.opts.Port)
	// subscriptions do not survive a clean session reconnect
	if c.hasCommands() {
		c.subscribeCommands()
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// await logs the outcome of token without blocking the caller.
func (c *Client) await(action, topic string, token mqtt.Token) {
	go func() {
		if !token.WaitTimeout(tokenTimeout) {
			c.logger.Warn("mqtt "+action+" timed out", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			c.logger.Error("mqtt "+action+" failed", "topic", topic, "error", err)
			return
		}
		c.logger.Debug("mqtt "+action+" done", "topic", topic)
	}()
}
