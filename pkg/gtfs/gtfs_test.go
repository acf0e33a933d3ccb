package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func gtfsZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func serveZip(t *testing.T, payload []byte) *Loader {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return NewLoader(srv.URL, testLogger)
}

func TestLoad(t *testing.T) {
	stops := strings.Join([]string{
		"stop_id,stop_name,stop_lat,stop_lon,location_type",
		"9001,T-Centralen,59.3313,18.0616,1",
		"9192,Slussen,59.3200,18.0719,1",
		",Nameless,59.0,18.0,1",
		"9999,Broken,not-a-number,18.0,1",
		"9002,OnlyTwoFields",
	}, "\n")
	payload := gtfsZip(t, map[string]string{
		"stops.txt":  stops,
		"routes.txt": "route_id\n1",
	})

	sites, err := serveZip(t, payload).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("expected 2 sites, got %d", len(sites))
	}
	if sites[0].ID != "9001" || sites[0].Name != "T-Centralen" || sites[0].Lat != 59.3313 {
		t.Errorf("unexpected first site: %+v", sites[0])
	}
}

func TestLoadMissingStopsFile(t *testing.T) {
	payload := gtfsZip(t, map[string]string{"routes.txt": "route_id\n1"})

	_, err := serveZip(t, payload).Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "stops.txt") {
		t.Errorf("expected stops.txt error, got %v", err)
	}
}

func TestLoadMissingColumn(t *testing.T) {
	payload := gtfsZip(t, map[string]string{
		"stops.txt": "stop_id,stop_name\n9001,T-Centralen",
	})

	_, err := serveZip(t, payload).Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "stop_lat") {
		t.Errorf("expected missing column error, got %v", err)
	}
}

func TestLoadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := NewLoader(srv.URL, testLogger).Load(context.Background())
	if err == nil {
		t.Error("expected error on non-200 response")
	}
}

func TestLoadNotAZip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a zip archive"))
	}))
	t.Cleanup(srv.Close)

	_, err := NewLoader(srv.URL, testLogger).Load(context.Background())
	if err == nil {
		t.Error("expected error for a malformed archive")
	}
}
