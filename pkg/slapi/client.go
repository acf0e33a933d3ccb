// Package slapi is a client for the SL transport integration API: sites,
// lines, deviation messages and per-site real-time departures.
package slapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slroute/internal/domain"
)

type Config struct {
	TransportBaseURL string // e.g. https://transport.integration.sl.se
	DeviationsURL    string // e.g. https://deviations.integration.sl.se/v1/messages
	APIKey           string
	AuthorityID      int
	Timeout          time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// get performs one API call and decodes the body into dest. Every failure
// mode comes back as a *domain.DataSourceError carrying endpoint and params.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dest any) error {
	if c.cfg.APIKey != "" {
		params.Set("key", c.cfg.APIKey)
	}
	reqURL := endpoint
	if encoded := params.Encode(); encoded != "" {
		reqURL = fmt.Sprintf("%s?%s", endpoint, encoded)
	}

	srcErr := func(status int, err error) *domain.DataSourceError {
		return &domain.DataSourceError{
			Endpoint:   endpoint,
			Params:     params.Encode(),
			StatusCode: status,
			Err:        err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return srcErr(0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return srcErr(0, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return srcErr(resp.StatusCode, nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return srcErr(0, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

type siteJSON struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
	Lat  *float64    `json:"lat"`
	Lon  *float64    `json:"lon"`
	Note string      `json:"note"`
}

// Sites fetches the site list. Rows without coordinates are dropped, not
// zero-filled; the dropped count is returned for accounting.
func (c *Client) Sites(ctx context.Context) ([]domain.Site, int, error) {
	params := url.Values{}
	params.Set("transport_authority_id", fmt.Sprintf("%d", c.cfg.AuthorityID))

	var raw []siteJSON
	if err := c.get(ctx, c.cfg.TransportBaseURL+"/v1/sites", params, &raw); err != nil {
		return nil, 0, err
	}

	sites := make([]domain.Site, 0, len(raw))
	dropped := 0
	for _, s := range raw {
		if s.ID.String() == "" || s.Lat == nil || s.Lon == nil {
			dropped++
			continue
		}
		sites = append(sites, domain.Site{
			ID:   s.ID.String(),
			Name: s.Name,
			Lat:  *s.Lat,
			Lon:  *s.Lon,
			Note: s.Note,
		})
	}
	return sites, dropped, nil
}

type lineJSON struct {
	ID                 json.Number `json:"id"`
	Name               string      `json:"name"`
	Designation        string      `json:"designation"`
	TransportAuthority struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	} `json:"transport_authority"`
	Valid struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"valid"`
}

// Lines fetches the timetable lines. The upstream response is a map keyed by
// transport mode ("metro", "bus", ...) with nested line objects; it is
// flattened into TimetableEntry rows. Rows missing id, name or valid.from are
// dropped and counted.
func (c *Client) Lines(ctx context.Context) ([]domain.TimetableEntry, int, error) {
	params := url.Values{}
	params.Set("transport_authority_id", fmt.Sprintf("%d", c.cfg.AuthorityID))

	var raw map[string][]lineJSON
	if err := c.get(ctx, c.cfg.TransportBaseURL+"/v1/lines", params, &raw); err != nil {
		return nil, 0, err
	}

	var entries []domain.TimetableEntry
	dropped := 0
	for mode, lines := range raw {
		for _, l := range lines {
			validFrom, err := parseAPITime(l.Valid.From)
			if l.ID.String() == "" || l.Name == "" || err != nil {
				dropped++
				continue
			}
			entry := domain.TimetableEntry{
				LineID:             l.ID.String(),
				TransportMode:      mode,
				Designation:        l.Designation,
				ValidFrom:          validFrom,
				TransportAuthority: l.TransportAuthority.Name,
			}
			if entry.Designation == "" {
				entry.Designation = l.Name
			}
			if to, err := parseAPITime(l.Valid.To); err == nil {
				entry.ValidTo = to
			}
			entries = append(entries, entry)
		}
	}
	return entries, dropped, nil
}

type deviationJSON struct {
	Priority struct {
		ImportanceLevel int `json:"importance_level"`
	} `json:"priority"`
	MessageVariants []struct {
		Header  string `json:"header"`
		Details string `json:"details"`
	} `json:"message_variants"`
	// Scope and scope.lines are genuinely optional upstream; a deviation
	// without line scope is kept but never joins a timetable row.
	Scope *struct {
		Lines []struct {
			ID json.Number `json:"id"`
		} `json:"lines"`
	} `json:"scope"`
	Publish struct {
		From string `json:"from"`
		Upto string `json:"upto"`
	} `json:"publish"`
}

// Deviations fetches the active deviation messages.
func (c *Client) Deviations(ctx context.Context) ([]domain.Deviation, error) {
	params := url.Values{}
	params.Set("transport_authority", fmt.Sprintf("%d", c.cfg.AuthorityID))

	var raw []deviationJSON
	if err := c.get(ctx, c.cfg.DeviationsURL, params, &raw); err != nil {
		return nil, err
	}

	devs := make([]domain.Deviation, 0, len(raw))
	for _, d := range raw {
		dev := domain.Deviation{
			Priority: d.Priority.ImportanceLevel,
		}
		if len(d.MessageVariants) > 0 {
			dev.Message = strings.TrimSpace(d.MessageVariants[0].Header)
		}
		if d.Scope != nil {
			for _, l := range d.Scope.Lines {
				if l.ID.String() != "" {
					dev.LineIDs = append(dev.LineIDs, l.ID.String())
				}
			}
		}
		if from, err := parseAPITime(d.Publish.From); err == nil {
			dev.ValidFrom = from
		}
		if to, err := parseAPITime(d.Publish.Upto); err == nil {
			dev.ValidTo = to
		}
		devs = append(devs, dev)
	}
	return devs, nil
}

type departureJSON struct {
	Destination string `json:"destination"`
	Direction   string `json:"direction"`
	State       string `json:"state"`
	Scheduled   string `json:"scheduled"`
	Expected    string `json:"expected"`
	Line        struct {
		ID            json.Number `json:"id"`
		Designation   string      `json:"designation"`
		TransportMode string      `json:"transport_mode"`
	} `json:"line"`
}

type departuresResponse struct {
	Departures []departureJSON `json:"departures"`
}

// Departures fetches real-time departures from one site within the forecast
// window. An empty transportMode requests all modes.
func (c *Client) Departures(ctx context.Context, siteID string, window time.Duration, transportMode string) ([]domain.Departure, error) {
	params := url.Values{}
	params.Set("forecast", fmt.Sprintf("%d", int(window.Minutes())))
	if transportMode != "" {
		params.Set("transport", transportMode)
	}

	endpoint := fmt.Sprintf("%s/v1/sites/%s/departures", c.cfg.TransportBaseURL, siteID)
	var raw departuresResponse
	if err := c.get(ctx, endpoint, params, &raw); err != nil {
		return nil, err
	}

	deps := make([]domain.Departure, 0, len(raw.Departures))
	for _, d := range raw.Departures {
		dep := domain.Departure{
			Destination:     d.Destination,
			Direction:       d.Direction,
			State:           d.State,
			LineID:          d.Line.ID.String(),
			LineDesignation: d.Line.Designation,
			TransportMode:   d.Line.TransportMode,
		}
		if ts, err := parseAPITime(d.Scheduled); err == nil {
			dep.Scheduled = ts
		}
		if ts, err := parseAPITime(d.Expected); err == nil {
			dep.Expected = ts
		} else {
			dep.Expected = dep.Scheduled
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

// The API mixes zoned and zone-less local timestamps plus bare dates.
var apiTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseAPITime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range apiTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched %q", s)
}
