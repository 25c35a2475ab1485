package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusMeters = 6_371_000.0

// EarthCircumferenceMeters bounds the length of any valid edge.
const EarthCircumferenceMeters = 2 * math.Pi * earthRadiusMeters

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// LengthMeters sums the great-circle length of a polyline.
func LengthMeters(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += Haversine(ls[i-1].Lat(), ls[i-1].Lon(), ls[i].Lat(), ls[i].Lon())
	}
	return total
}

// LengthMillimeters is LengthMeters rounded to whole millimeters, saturating at MaxUint32.
func LengthMillimeters(ls orb.LineString) uint32 {
	mm := math.Round(LengthMeters(ls) * 1000)
	if mm > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(mm)
}

// metersPerDegree converts degree-scaled equirectangular distances to meters.
const metersPerDegree = math.Pi / 180 * earthRadiusMeters

// DegreesFor is the latitude span of a north-south distance in meters.
func DegreesFor(meters float64) float64 { return meters / metersPerDegree }

// ProjectToSegment projects p onto segment ab in a local equirectangular
// projection. It returns the distance in meters and the clamped ratio along
// ab, 0 at a and 1 at b.
func ProjectToSegment(p, a, b orb.Point) (dist, ratio float64) {
	cosLat := math.Cos((a.Lat() + b.Lat()) / 2 * math.Pi / 180)
	ax, ay := a.Lon()*cosLat, a.Lat()
	px, py := p.Lon()*cosLat, p.Lat()

	// Compare degenerate segments before scaling, cosLat adds noise.
	if a == b {
		return math.Hypot(px-ax, py-ay) * metersPerDegree, 0
	}
	dx, dy := b.Lon()*cosLat-ax, b.Lat()-ay
	if lenSq := dx*dx + dy*dy; lenSq > 0 {
		ratio = math.Max(0, math.Min(1, ((px-ax)*dx+(py-ay)*dy)/lenSq))
	}
	return math.Hypot(px-(ax+ratio*dx), py-(ay+ratio*dy)) * metersPerDegree, ratio
}
