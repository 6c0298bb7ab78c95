package services

import (
	"math"
	"strconv"
	"strings"
)

// Earth radius used for sphere geometry, in miles and kilometres.
const (
	EarthRadiusMi = 3963.2
	EarthRadiusKm = 6378.1
)

func degToRad(d float64) float64 {
	return d * (math.Pi / 180)
}

// AngularDistance returns the central angle in radians between two points
// given in degrees.
func AngularDistance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degToRad(lat2 - lat1)
	dLng := degToRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degToRad(lat1))*math.Cos(degToRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// RadiusFor converts a distance in unit ("mi" or anything else meaning
// km) into radians on the sphere.
func RadiusFor(distance float64, unit string) float64 {
	if unit == "mi" {
		return distance / EarthRadiusMi
	}
	return distance / EarthRadiusKm
}

// MeterMultiplier converts metres into unit.
func MeterMultiplier(unit string) float64 {
	if unit == "mi" {
		return 0.000621371
	}
	return 0.001
}

// ParseLatLng reads a "lat,lng" pair.
func ParseLatLng(raw string) (lat, lng float64, ok bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}
