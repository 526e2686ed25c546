package mqtt

import (
	"encoding/json"
	"fmt"
)

// PublishView broadcasts the new state of a view on <prefix>/views/<kind> as
// a retained message, so late subscribers receive the live instance. It does
// not wait for the broker; delivery failures are logged.
func (c *Client) PublishView(kind string, instance any) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	data, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("marshal %s view: %w", kind, err)
	}
	topic := c.Topic("views", kind)
	c.await("publish", topic, c.client.Publish(topic, qos, true, data))
	return nil
}
