package locations

import "math"

const (
	earthRadiusKm   = 6371.0
	kmPerDegreeLat  = earthRadiusKm * math.Pi / 180
	defaultRadiusKm = 10.0
	maxRadiusKm     = 500.0
)

// haversineKm returns the great-circle distance between two points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

type boundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// boundingBoxAround returns a box containing every point within radiusKm of
// the centre. When the circle reaches a pole the longitude span covers the
// whole range.
func boundingBoxAround(lat, lng, radiusKm float64) boundingBox {
	dLat := radiusKm / kmPerDegreeLat
	box := boundingBox{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
		MinLng: -180,
		MaxLng: 180,
	}
	if box.MinLat == -90 || box.MaxLat == 90 {
		return box
	}

	ratio := math.Sin(radiusKm/earthRadiusKm) / math.Cos(toRadians(lat))
	if ratio >= 1 {
		return box
	}
	dLng := math.Asin(ratio) * 180 / math.Pi
	box.MinLng = math.Max(lng-dLng, -180)
	box.MaxLng = math.Min(lng+dLng, 180)
	return box
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
