package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Reading is one time-series sample returned by /sensors/{id}/data.
type Reading struct {
	ID           int64   `json:"id"`
	Value        float64 `json:"value"`
	TimestampISO string  `json:"timestamp_iso"`
}

// Field is one named metadata attribute of a sensor. Value is either a
// string or a float64, as decoded from the API.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// SensorID is a sensor identifier. WoTKit sends numeric ids in search
// results but addresses sensors by id or name in paths, so both forms decode.
type SensorID string

func (id *SensorID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = SensorID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("sensor id %s: %w", b, err)
	}
	*id = SensorID(n.String())
	return nil
}

type SensorSummary struct {
	ID          SensorID `json:"id"`
	Name        string   `json:"name"`
	LongName    string   `json:"longName"`
	Description string   `json:"description,omitempty"`
}

// Selection is one user choice of a sensor to display. Seq orders selections
// within a controller's lifetime.
type Selection struct {
	Seq        uint64    `json:"seq"`
	SensorID   string    `json:"sensorId"`
	SelectedAt time.Time `json:"selectedAt"`
}

// HistoryEntry is a persisted selection, newest first when listed.
type HistoryEntry struct {
	SensorID   string    `json:"sensorId"`
	SensorName string    `json:"sensorName"`
	SelectedAt time.Time `json:"selectedAt"`
}
