// Package validate implements the sync core's pure, side-effect-free EVV
// validation and integrity arithmetic (spec.md C6). Every function here is
// deterministic given its inputs; none of them touch the store, the
// network, or the clock except through an explicit "now" parameter.
package validate

import "math"

// earthRadiusMeters is the sphere radius spec.md §4.4 specifies for the
// Haversine distance calculation.
const earthRadiusMeters = 6371000.0

// GeofenceResult is the outcome of a geofence check (spec.md §4.4).
type GeofenceResult struct {
	DistanceMeters       float64
	EffectiveRadius      float64
	MaxPossibleDistance  float64
	MinPossibleDistance  float64
	IsWithinGeofence     bool
	RequiresManualReview bool
	Reason               string
}

// haversineMeters returns the great-circle distance between two lat/lon
// points, in meters, on a sphere of radius earthRadiusMeters.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	phi1, phi2 := toRad(lat1), toRad(lat2)
	dPhi := toRad(lat2 - lat1)
	dLambda := toRad(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// CheckGeofence implements spec.md §4.4's geofence check: distance is
// Haversine, effectiveRadius = radius + tolerance, maxPossibleDistance =
// distance + accuracy, minPossibleDistance = max(0, distance - accuracy).
// isWithinGeofence = minPossibleDistance <= effectiveRadius.
// requiresManualReview = isWithinGeofence && maxPossibleDistance > effectiveRadius.
func CheckGeofence(lat, lon, accuracy, centerLat, centerLon, radius, tolerance float64) GeofenceResult {
	distance := haversineMeters(lat, lon, centerLat, centerLon)
	effectiveRadius := radius + tolerance
	maxPossible := distance + accuracy
	minPossible := distance - accuracy
	if minPossible < 0 {
		minPossible = 0
	}

	isWithin := minPossible <= effectiveRadius
	requiresReview := isWithin && maxPossible > effectiveRadius

	var reason string
	switch {
	case !isWithin && distance > effectiveRadius+50:
		reason = "significantly outside"
	case !isWithin:
		reason = "slightly outside - manual review"
	case requiresReview:
		reason = "accuracy makes verification uncertain"
	}

	return GeofenceResult{
		DistanceMeters:       distance,
		EffectiveRadius:      effectiveRadius,
		MaxPossibleDistance:  maxPossible,
		MinPossibleDistance:  minPossible,
		IsWithinGeofence:     isWithin,
		RequiresManualReview: requiresReview,
		Reason:               reason,
	}
}
