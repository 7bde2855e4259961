package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Alert is one active weather alert as served on GET /alerts.
type Alert struct {
	ID             string     `json:"id,omitempty"`
	Event          string     `json:"event"`
	Details        string     `json:"details"`
	Locations      string     `json:"locations"`
	ExpirationTime *time.Time `json:"expiration_time"`
	ScrollRequired *bool      `json:"scroll_required,omitempty"`
}

// IsEmpty reports whether the record carries none of the displayable text
// fields. A JSON null or {} element decodes to an empty alert.
func (a *Alert) IsEmpty() bool {
	return strings.TrimSpace(a.Event) == "" &&
		strings.TrimSpace(a.Details) == "" &&
		strings.TrimSpace(a.Locations) == ""
}

// IsExpired reports whether the alert has an expiration time at or before now.
func (a *Alert) IsExpired(now time.Time) bool {
	return a.ExpirationTime != nil && !a.ExpirationTime.After(now)
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e12

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// UnmarshalJSON decodes a feed record. An expiration_time that cannot be
// parsed is logged and left nil, so the alert still renders with an unknown
// expiration.
func (a *Alert) UnmarshalJSON(data []byte) error {
	type wire struct {
		ID             string          `json:"id"`
		Event          string          `json:"event"`
		Details        string          `json:"details"`
		Locations      string          `json:"locations"`
		ExpirationTime json.RawMessage `json:"expiration_time"`
		ScrollRequired *bool           `json:"scroll_required"`
	}

	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	exp, err := ParseExpiration(w.ExpirationTime)
	if err != nil {
		slog.Warn("ignoring expiration_time", "id", w.ID, "event", w.Event, "error", err)
		exp = nil
	}

	*a = Alert{
		ID:             w.ID,
		Event:          w.Event,
		Details:        w.Details,
		Locations:      w.Locations,
		ExpirationTime: exp,
		ScrollRequired: w.ScrollRequired,
	}
	return nil
}

// ParseExpiration decodes an expiration_time value. It accepts RFC 3339
// strings, zone-less timestamps (read as UTC) and epoch numbers in seconds or
// milliseconds. Absent, null and empty values yield nil.
func ParseExpiration(raw json.RawMessage) (*time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return parseTimestamp(strings.TrimSpace(s))
	}

	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("unsupported value %s", raw)
	}
	var t time.Time
	if n >= epochMillisThreshold {
		t = time.UnixMilli(int64(n))
	} else {
		t = time.Unix(int64(n), 0)
	}
	t = t.UTC()
	return &t, nil
}

func parseTimestamp(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ParseExpiration(json.RawMessage(strconv.FormatInt(n, 10)))
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", s)
}
