package mood

import (
	"fmt"
	"math"
	"math/rand"
)

// Location is a named point in degrees
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Validate rejects coordinates outside the geographic domain
func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidLocation, l.Lat)
	}
	if math.IsNaN(l.Lng) || l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidLocation, l.Lng)
	}
	return nil
}

func (l Location) String() string {
	return fmt.Sprintf("%s (%.4f, %.4f)", l.Name, l.Lat, l.Lng)
}

var catalog = []Location{
	{Name: "Tokyo", Lat: 35.6762, Lng: 139.6503},
	{Name: "New York", Lat: 40.7128, Lng: -74.0060},
	{Name: "London", Lat: 51.5074, Lng: -0.1278},
	{Name: "Paris", Lat: 48.8566, Lng: 2.3522},
	{Name: "Sydney", Lat: -33.8688, Lng: 151.2093},
	{Name: "Mumbai", Lat: 19.0760, Lng: 72.8777},
	{Name: "Sao Paulo", Lat: -23.5505, Lng: -46.6333},
	{Name: "Cairo", Lat: 30.0444, Lng: 31.2357},
	{Name: "Beijing", Lat: 39.9042, Lng: 116.4074},
	{Name: "Moscow", Lat: 55.7558, Lng: 37.6173},
	{Name: "Dubai", Lat: 25.2048, Lng: 55.2708},
	{Name: "Singapore", Lat: 1.3521, Lng: 103.8198},
	{Name: "Berlin", Lat: 52.5200, Lng: 13.4050},
	{Name: "Toronto", Lat: 43.6532, Lng: -79.3832},
	{Name: "Seoul", Lat: 37.5665, Lng: 126.9780},
	{Name: "Lagos", Lat: 6.5244, Lng: 3.3792},
	{Name: "Buenos Aires", Lat: -34.6037, Lng: -58.3816},
	{Name: "Bangkok", Lat: 13.7563, Lng: 100.5018},
	{Name: "Istanbul", Lat: 41.0082, Lng: 28.9784},
	{Name: "Mexico City", Lat: 19.4326, Lng: -99.1332},
}

// Catalog returns the fixed list of world locations used for simulation and fallback
func Catalog() []Location {
	out := make([]Location, len(catalog))
	copy(out, catalog)
	return out
}

// RandomLocation picks a catalog location uniformly
func RandomLocation(rng *rand.Rand) Location {
	return catalog[rng.Intn(len(catalog))]
}

// RandomKind picks a catalog kind uniformly
func RandomKind(rng *rand.Rand) Kind {
	return kindOrder[rng.Intn(len(kindOrder))]
}
