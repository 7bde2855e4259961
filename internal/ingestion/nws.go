package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mr1hm/go-weather-ticker/internal/models"
	"github.com/mr1hm/go-weather-ticker/internal/repository"
)

const maxDetailsLength = 256

type nwsResponse struct {
	Features []nwsFeature `json:"features"`
}

type nwsFeature struct {
	ID         string        `json:"id"`
	Properties nwsProperties `json:"properties"`
}

type nwsProperties struct {
	ID          string              `json:"id"`
	Event       string              `json:"event"`
	Headline    string              `json:"headline"`
	AreaDesc    string              `json:"areaDesc"`
	MessageType string              `json:"messageType"`
	Sent        time.Time           `json:"sent"`
	Expires     *time.Time          `json:"expires"`
	Ends        *time.Time          `json:"ends"`
	Parameters  map[string][]string `json:"parameters"`
}

// nwsQuery builds the active-alerts query for the configured event codes.
func nwsQuery(codes []string) url.Values {
	q := url.Values{}
	q.Set("status", "actual")
	q.Set("message_type", "alert,update")
	q.Set("region_type", "land")
	q.Set("urgency", "Immediate,Future,Expected")
	q.Set("severity", "Extreme,Severe,Moderate")
	q.Set("certainty", "Observed,Likely,Possible")
	q.Set("limit", "500")
	if len(codes) > 0 {
		q.Set("code", strings.Join(codes, ","))
	}
	return q
}

func (m *Manager) pollNWS(ctx context.Context) ([]repository.Record, error) {
	endpoint, err := url.Parse(m.cfg.Sources.NWSURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing NWS url: %w", err)
	}
	endpoint.RawQuery = nwsQuery(m.cfg.Sources.NWSCodes).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	// api.weather.gov rejects requests without a User-Agent.
	req.Header.Set("User-Agent", m.cfg.Sources.NWSUserAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data nwsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	records := make([]repository.Record, 0, len(data.Features))
	for _, f := range data.Features {
		rec, ok := toRecord(f)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

func toRecord(f nwsFeature) (repository.Record, bool) {
	p := f.Properties
	id := p.ID
	if id == "" {
		id = f.ID
	}
	if id == "" || p.Event == "" {
		return repository.Record{}, false
	}

	expires := p.Expires
	if expires == nil {
		expires = p.Ends
	}
	if expires != nil {
		utc := expires.UTC()
		expires = &utc
	}

	return repository.Record{
		Alert: models.Alert{
			ID:             id,
			Event:          p.Event,
			Details:        composeDetails(p),
			Locations:      p.AreaDesc,
			ExpirationTime: expires,
		},
		Sent: p.Sent.UTC(),
	}, true
}

var detailParams = []struct {
	key, label string
	capitalize bool
}{
	{"NWSheadline", "NWS Headline", false},
	{"thunderstormDamageThreat", "Thunderstorm Damage Threat", true},
	{"tornadoDamageThreat", "Tornado Damage Threat", true},
	{"tornadoDetection", "Tornado Detection", true},
	{"flashFloodDamageThreat", "Flash Flood Damage Threat", true},
	{"maxWindGust", "Max Wind", true},
	{"maxHailSize", "Max Hail", true},
	{"flashFloodDetection", "Flash Flood Detection", true},
}

// composeDetails summarises the NWS parameters that matter on air. It falls
// back to the headline when none are present.
func composeDetails(p nwsProperties) string {
	var parts []string
	if p.MessageType == "Update" {
		parts = append(parts, "UPDATE")
	}
	for _, dp := range detailParams {
		v := strings.Join(p.Parameters[dp.key], "")
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if dp.capitalize {
			v = capitalize(v)
		}
		parts = append(parts, dp.label+": "+v)
	}

	details := strings.Join(parts, ", ")
	if len(parts) == 0 || (len(parts) == 1 && parts[0] == "UPDATE") {
		details = strings.Join(append(parts, p.Headline), ", ")
	}
	return truncate(strings.Trim(details, ", "), maxDetailsLength)
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + strings.ToLower(s[size:])
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
