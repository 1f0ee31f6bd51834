// Package geo implements the approximate location checks used by
// geofenced policies. Tokens store a geohash cell, not a coordinate, so
// every distance here is measured from the cell center.
package geo

import (
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
)

// Precision is the geohash length used at issuance time. Six characters
// yield cells of roughly 1.2 km x 0.6 km.
const Precision = 6

const earthRadiusMeters = 6371000

// Encode returns the geohash cell for the given coordinates at the
// fixed issuance precision.
func Encode(lat, lon float64) string {
	return geohash.EncodeWithPrecision(lat, lon, Precision)
}

// Decode returns the center coordinates of a geohash cell.
func Decode(hash string) (lat, lon float64, err error) {
	if hash == "" {
		return 0, 0, fmt.Errorf("empty geohash")
	}
	if err := geohash.Validate(hash); err != nil {
		return 0, 0, fmt.Errorf("invalid geohash %q: %w", hash, err)
	}
	lat, lon = geohash.DecodeCenter(hash)
	return lat, lon, nil
}

// Distance returns the great-circle distance in meters between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// WithinRadius reports whether the center of the geohash cell lies within
// radiusMeters of the reference point. An invalid or empty hash never
// matches.
func WithinRadius(hash string, refLat, refLon, radiusMeters float64) bool {
	lat, lon, err := Decode(hash)
	if err != nil {
		return false
	}
	return Distance(lat, lon, refLat, refLon) <= radiusMeters
}
