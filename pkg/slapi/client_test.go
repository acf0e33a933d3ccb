package slapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"slroute/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{
		TransportBaseURL: srv.URL,
		DeviationsURL:    srv.URL + "/v1/messages",
		APIKey:           "test-key",
		AuthorityID:      1,
	})
	return c, srv
}

func TestSites(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sites" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 9001, "name": "T-Centralen", "lat": 59.3313, "lon": 18.0616},
			{"id": 9192, "name": "Slussen", "lat": 59.3200, "lon": 18.0719, "note": "temporary entrance"},
			{"id": 9999, "name": "No coordinates", "lat": null, "lon": null},
			{"id": 9998, "name": "Missing entirely"}
		]`))
	}))

	sites, dropped, err := c.Sites(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("expected 2 sites, got %d", len(sites))
	}
	if dropped != 2 {
		t.Errorf("expected 2 dropped rows, got %d", dropped)
	}
	if sites[0].ID != "9001" || sites[0].Lat != 59.3313 {
		t.Errorf("unexpected first site: %+v", sites[0])
	}
	if sites[1].Note != "temporary entrance" {
		t.Errorf("note not carried: %q", sites[1].Note)
	}

	q, err := url.ParseQuery(gotQuery)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	if q.Get("transport_authority_id") != "1" {
		t.Errorf("authority id not passed, query %q", gotQuery)
	}
	if q.Get("key") != "test-key" {
		t.Errorf("api key not passed, query %q", gotQuery)
	}
}

func TestLines(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"metro": [
				{"id": 14, "name": "tunnelbanans röda linje 14", "designation": "14",
				 "transport_authority": {"id": 1, "name": "SL"},
				 "valid": {"from": "2007-08-24"}}
			],
			"bus": [
				{"id": 55, "name": "55",
				 "transport_authority": {"id": 1, "name": "SL"},
				 "valid": {"from": "2012-06-16T00:00:00", "to": "2030-01-01"}},
				{"id": 99, "name": "broken", "valid": {}}
			]
		}`))
	}))

	lines, dropped, err := c.Lines(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if dropped != 1 {
		t.Errorf("expected 1 dropped row, got %d", dropped)
	}

	byID := map[string]domain.TimetableEntry{}
	for _, l := range lines {
		byID[l.LineID] = l
	}

	metro := byID["14"]
	if metro.TransportMode != "metro" || metro.Designation != "14" {
		t.Errorf("unexpected metro line: %+v", metro)
	}
	if metro.TransportAuthority != "SL" {
		t.Errorf("authority not carried: %q", metro.TransportAuthority)
	}
	if metro.ValidFrom.IsZero() {
		t.Error("valid.from not parsed")
	}

	bus := byID["55"]
	if bus.Designation != "55" {
		t.Errorf("designation must fall back to name, got %q", bus.Designation)
	}
	if bus.ValidTo.IsZero() {
		t.Error("valid.to not parsed")
	}
}

func TestDeviations(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{
				"priority": {"importance_level": 42},
				"message_variants": [{"header": " Reduced service ", "details": "long text"}],
				"scope": {"lines": [{"id": 14}, {"id": 19}]},
				"publish": {"from": "2025-06-01T00:00:00", "upto": "2025-06-30T00:00:00"}
			},
			{
				"priority": {"importance_level": 10},
				"message_variants": [{"header": "Station notice"}],
				"publish": {"from": "2025-06-01T00:00:00"}
			}
		]`))
	}))

	devs, err := c.Deviations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devs) != 2 {
		t.Fatalf("expected 2 deviations, got %d", len(devs))
	}

	first := devs[0]
	if first.Priority != 42 {
		t.Errorf("priority not carried: %d", first.Priority)
	}
	if first.Message != "Reduced service" {
		t.Errorf("header not trimmed: %q", first.Message)
	}
	if len(first.LineIDs) != 2 || first.LineIDs[0] != "14" || first.LineIDs[1] != "19" {
		t.Errorf("line scope not expanded: %v", first.LineIDs)
	}

	// No scope at all still yields a (non-joinable) deviation.
	if devs[1].LineIDs != nil {
		t.Errorf("expected no line ids, got %v", devs[1].LineIDs)
	}
}

func TestDepartures(t *testing.T) {
	var gotPath, gotQuery string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"departures": [
			{
				"destination": "Fruängen",
				"direction": "södergående",
				"state": "EXPECTED",
				"scheduled": "2025-06-02T12:04:00",
				"expected": "2025-06-02T12:05:30",
				"line": {"id": 14, "designation": "14", "transport_mode": "METRO"}
			},
			{
				"destination": "Mörby centrum",
				"state": "ATSTOP",
				"scheduled": "2025-06-02T12:06:00",
				"line": {"id": 14, "designation": "14", "transport_mode": "METRO"}
			}
		]}`))
	}))

	deps, err := c.Departures(context.Background(), "9001", time.Hour, "METRO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v1/sites/9001/departures" {
		t.Errorf("unexpected path %s", gotPath)
	}
	q, err := url.ParseQuery(gotQuery)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	if q.Get("forecast") != "60" {
		t.Errorf("forecast window not passed, query %q", gotQuery)
	}
	if q.Get("transport") != "METRO" {
		t.Errorf("transport mode not passed, query %q", gotQuery)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 departures, got %d", len(deps))
	}

	if deps[0].Expected.Equal(deps[0].Scheduled) {
		t.Error("expected time should differ from scheduled when provided")
	}
	// A missing expected time falls back to scheduled.
	if !deps[1].Expected.Equal(deps[1].Scheduled) {
		t.Errorf("expected fallback to scheduled, got %v vs %v", deps[1].Expected, deps[1].Scheduled)
	}
	if deps[0].LineID != "14" || deps[0].TransportMode != "METRO" {
		t.Errorf("line fields not carried: %+v", deps[0])
	}
}

func TestNon200IsDataSourceError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))

	_, _, err := c.Sites(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var srcErr *domain.DataSourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected DataSourceError, got %T", err)
	}
	if srcErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", srcErr.StatusCode)
	}
	if srcErr.Endpoint == "" {
		t.Error("error must carry the endpoint")
	}
	if srcErr.Params == "" {
		t.Error("error must carry the request params")
	}
}

func TestMalformedBodyIsDataSourceError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))

	_, _, err := c.Sites(context.Background())
	var srcErr *domain.DataSourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected DataSourceError, got %v", err)
	}
	if srcErr.Unwrap() == nil {
		t.Error("decode failure must wrap the underlying error")
	}
}

func TestContextCancellation(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := c.Sites(ctx)
	var srcErr *domain.DataSourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected DataSourceError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestParseAPITime(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2025-06-02T12:04:00Z", false},
		{"2025-06-02T12:04:00", false},
		{"2007-08-24", false},
		{"", true},
		{"not a time", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			_, err := parseAPITime(tc.in)
			if (err != nil) != tc.wantErr {
				t.Errorf("parseAPITime(%q): err=%v, wantErr=%v", tc.in, err, tc.wantErr)
			}
		})
	}
}
