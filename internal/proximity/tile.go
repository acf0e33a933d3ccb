package proximity

import (
	"fmt"
	"math"
)

// Sites are bucketed by Web Mercator (slippy map) tile so Nearest only scans
// candidates near the query point instead of the whole site list.

// tileID calculates the tile ID for coordinates at the given zoom level.
func tileID(lat, lon float64, zoom int) string {
	n := math.Pow(2, float64(zoom))
	x := int(math.Floor((lon + 180.0) / 360.0 * n))
	latRad := lat * math.Pi / 180.0
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))

	maxTile := int(n) - 1
	if x < 0 {
		x = 0
	}
	if x > maxTile {
		x = maxTile
	}
	if y < 0 {
		y = 0
	}
	if y > maxTile {
		y = maxTile
	}

	return fmt.Sprintf("%d/%d/%d", zoom, x, y)
}

func parseTileID(id string) (zoom, x, y int, ok bool) {
	n, err := fmt.Sscanf(id, "%d/%d/%d", &zoom, &x, &y)
	if err != nil || n != 3 {
		return 0, 0, 0, false
	}
	return zoom, x, y, true
}

// tilesInBBox returns all tile IDs intersecting the bounding box.
func tilesInBBox(minLat, minLon, maxLat, maxLon float64, zoom int) []string {
	topLeft := tileID(maxLat, minLon, zoom)
	bottomRight := tileID(minLat, maxLon, zoom)

	z1, x1, y1, ok1 := parseTileID(topLeft)
	z2, x2, y2, ok2 := parseTileID(bottomRight)
	if !ok1 || !ok2 || z1 != z2 {
		return nil
	}

	var tiles []string
	for x := x1; x <= x2; x++ {
		for y := y1; y <= y2; y++ {
			tiles = append(tiles, fmt.Sprintf("%d/%d/%d", zoom, x, y))
		}
	}
	return tiles
}
