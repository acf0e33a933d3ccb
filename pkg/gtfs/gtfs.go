// Package gtfs loads transit sites from a static GTFS zip. It is the offline
// fallback site source used when the integration API has never answered.
package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"slroute/internal/domain"
)

type Loader struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewLoader(url string, logger *slog.Logger) *Loader {
	return &Loader{
		url: url,
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
		logger: logger.With("component", "gtfs_loader"),
	}
}

// Load downloads the GTFS zip and parses stops.txt into sites. Rows without
// usable coordinates are skipped.
func (l *Loader) Load(ctx context.Context) ([]domain.Site, error) {
	start := time.Now()
	l.logger.Info("downloading GTFS feed", "url", l.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download gtfs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	sites, err := parseStops(reader)
	if err != nil {
		return nil, err
	}

	l.logger.Info("GTFS feed loaded",
		"stops", len(sites),
		"size_bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sites, nil
}

func parseStops(reader *zip.Reader) ([]domain.Site, error) {
	var stopsFile *zip.File
	for _, f := range reader.File {
		if f.Name == "stops.txt" {
			stopsFile = f
			break
		}
	}
	if stopsFile == nil {
		return nil, fmt.Errorf("stops.txt not found in GTFS zip")
	}

	rc, err := stopsFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open stops.txt: %w", err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read stops header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"stop_id", "stop_name", "stop_lat", "stop_lon"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("stops.txt missing column %q", required)
		}
	}

	var sites []domain.Site
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read stops row: %w", err)
		}

		lat, latErr := strconv.ParseFloat(field(record, col["stop_lat"]), 64)
		lon, lonErr := strconv.ParseFloat(field(record, col["stop_lon"]), 64)
		if field(record, col["stop_id"]) == "" || latErr != nil || lonErr != nil {
			continue
		}

		sites = append(sites, domain.Site{
			ID:   field(record, col["stop_id"]),
			Name: field(record, col["stop_name"]),
			Lat:  lat,
			Lon:  lon,
		})
	}
	return sites, nil
}

// field returns the i-th value of a record, tolerating short rows.
func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}
