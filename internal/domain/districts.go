package domain

import (
	"fmt"
	"math"
	"strings"
)

// District is an administrative district with its centroid.
type District struct {
	Name string
	Geo  Geo
}

var districts = []District{
	{"Colombo", Geo{6.9271, 79.8612}},
	{"Gampaha", Geo{7.0917, 80.0000}},
	{"Kalutara", Geo{6.5854, 79.9607}},
	{"Kandy", Geo{7.2906, 80.6337}},
	{"Matale", Geo{7.4675, 80.6234}},
	{"Nuwara Eliya", Geo{6.9497, 80.7891}},
	{"Galle", Geo{6.0535, 80.2210}},
	{"Matara", Geo{5.9549, 80.5550}},
	{"Hambantota", Geo{6.1429, 81.1212}},
	{"Jaffna", Geo{9.6615, 80.0255}},
	{"Kilinochchi", Geo{9.3803, 80.3770}},
	{"Mannar", Geo{8.9810, 79.9044}},
	{"Mullaitivu", Geo{9.2671, 80.8142}},
	{"Vavuniya", Geo{8.7514, 80.4971}},
	{"Trincomalee", Geo{8.5874, 81.2152}},
	{"Batticaloa", Geo{7.7310, 81.6747}},
	{"Ampara", Geo{7.2975, 81.6820}},
	{"Kurunegala", Geo{7.4863, 80.3647}},
	{"Puttalam", Geo{8.0362, 79.8283}},
	{"Anuradhapura", Geo{8.3114, 80.4037}},
	{"Polonnaruwa", Geo{7.9403, 81.0188}},
	{"Badulla", Geo{6.9934, 81.0550}},
	{"Monaragala", Geo{6.8728, 81.3507}},
	{"Ratnapura", Geo{6.6828, 80.3992}},
	{"Kegalle", Geo{7.2513, 80.3464}},
}

// Districts returns the 25 districts in their fixed processing order.
func Districts() []District {
	out := make([]District, len(districts))
	copy(out, districts)
	return out
}

// LookupDistrict finds a district by name, ignoring case.
func LookupDistrict(name string) (District, error) {
	name = strings.TrimSpace(name)
	for _, d := range districts {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return District{}, fmt.Errorf("%w: %q", ErrUnknownDistrict, name)
}

// NearestDistrict returns the district whose centroid is closest to g.
func NearestDistrict(g Geo) District {
	best := districts[0]
	bestDist := DistanceKm(g, best.Geo)
	for _, d := range districts[1:] {
		if dist := DistanceKm(g, d.Geo); dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best
}

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between two points.
func DistanceKm(a, b Geo) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
