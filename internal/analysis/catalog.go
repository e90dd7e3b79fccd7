package analysis

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const DefaultVehicle = "safari"

type Vehicle struct {
	Key         string
	Competitors []string
}

// Catalog is ordered; the first entry is not necessarily the default.
var Catalog = []Vehicle{
	{Key: "safari", Competitors: []string{"Mahindra XUV700", "Hyundai Alcazar", "MG Hector Plus"}},
	{Key: "harrier", Competitors: []string{"Jeep Compass", "MG Hector", "Hyundai Tucson"}},
}

func lookup(vehicle string) (Vehicle, bool) {
	for _, v := range Catalog {
		if v.Key == vehicle {
			return v, true
		}
	}
	return Vehicle{}, false
}

func IsKnownVehicle(vehicle string) bool {
	_, ok := lookup(vehicle)
	return ok
}

// CompetitorsFor returns a copy of the default competitor list, falling
// back to the default vehicle's list for unknown keys.
func CompetitorsFor(vehicle string) []string {
	v, ok := lookup(vehicle)
	if !ok {
		v, _ = lookup(DefaultVehicle)
	}
	out := make([]string, len(v.Competitors))
	copy(out, v.Competitors)
	return out
}

func VehicleKeys() []string {
	keys := make([]string, 0, len(Catalog))
	for _, v := range Catalog {
		keys = append(keys, v.Key)
	}
	return keys
}

func CompetitorMapping() map[string][]string {
	mapping := make(map[string][]string, len(Catalog))
	for _, v := range Catalog {
		mapping[v.Key] = CompetitorsFor(v.Key)
	}
	return mapping
}

func DisplayName(vehicle string) string {
	return cases.Title(language.Und).String(vehicle)
}

// BrandLabel is the brand shown on the vehicle's own sample feedback.
func BrandLabel(vehicle string) string {
	return "Tata " + DisplayName(vehicle)
}
