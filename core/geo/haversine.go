package geo

import (
	"math"

	"github.com/courierops/dispatchd/core/model"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two
// points, ignoring road networks. It is symmetric and deterministic, which
// makes it suitable as a coarse prefilter before any routing API call.
func Haversine(a, b model.Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
