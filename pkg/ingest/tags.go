package ingest

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/osm"

	"roadgraph/pkg/graph"
)

// denied lists highway values no car can drive on.
var denied = map[string]bool{
	"footway":     true,
	"cycleway":    true,
	"path":        true,
	"steps":       true,
	"pedestrian":  true,
	"bridleway":   true,
	"corridor":    true,
	"proposed":    true,
	"abandoned":   true,
	"platform":    true,
	"bus_stop":    true,
	"elevator":    true,
	"escape":      true,
	"rest_area":   true,
	"services":    true,
	"via_ferrata": true,
}

var highwayTypes = map[string]graph.RoadType{
	"motorway":      graph.Motorway,
	"trunk":         graph.Trunk,
	"primary":       graph.Primary,
	"secondary":     graph.Secondary,
	"tertiary":      graph.Tertiary,
	"unclassified":  graph.Unclassified,
	"residential":   graph.Residential,
	"living_street": graph.LivingStreet,
	"service":       graph.Service,
	"track":         graph.Track,
	"road":          graph.OtherRoad,
	"busway":        graph.OtherRoad,
	"construction":  graph.OtherRoad,
}

// functionalClasses ranks road types, 1 being the most important.
var functionalClasses = map[graph.RoadType]graph.FunctionalClass{
	graph.Motorway:     1,
	graph.Trunk:        1,
	graph.Primary:      2,
	graph.Secondary:    3,
	graph.Tertiary:     4,
	graph.Unclassified: 5,
	graph.Residential:  5,
	graph.LivingStreet: 5,
	graph.Service:      5,
	graph.Track:        5,
	graph.OtherRoad:    5,
}

// classify maps a highway value to a road type and sub-type. Link roads take
// the type of the road they belong to.
func classify(highway string) (graph.RoadType, graph.RoadSubType, bool) {
	if base, ok := strings.CutSuffix(highway, "_link"); ok {
		t, known := highwayTypes[base]
		if !known {
			return 0, 0, false
		}
		if t == graph.Motorway {
			return t, graph.Ramp, true
		}
		return t, graph.ConnectingRoad, true
	}
	t, ok := highwayTypes[highway]
	if !ok {
		return 0, 0, false
	}
	if t == graph.Service {
		return t, graph.ServiceRoad, true
	}
	return t, graph.MainRoad, true
}

// roadState resolves the travel directions of a way. reversed is set when
// traffic flows against the node order; ok is false for ways whose
// direction changes over time.
func roadState(tags osm.Tags) (state graph.RoadState, reversed, ok bool) {
	state = graph.TwoWay
	hw := tags.Find("highway")
	junction := tags.Find("junction")
	if hw == "motorway" || hw == "motorway_link" || junction == "roundabout" || junction == "circular" {
		state = graph.OneWay
	}
	switch tags.Find("oneway") {
	case "yes", "true", "1":
		state = graph.OneWay
	case "-1", "reverse":
		state, reversed = graph.OneWay, true
	case "no", "false", "0":
		state = graph.TwoWay
	case "reversible", "alternating":
		return 0, false, false
	}
	return state, reversed, true
}

func isRoundabout(tags osm.Tags) bool {
	j := tags.Find("junction")
	return j == "roundabout" || j == "circular"
}

var matchUnit = regexp.MustCompile(`^\s*\+?(\d+(?:[.,]\d+)?)\s*([/\w]*)`)

// parseSpeed reads a maxspeed value in km/h.
func parseSpeed(s string) (float64, bool) {
	switch strings.TrimSpace(s) {
	case "":
		return 0, false
	case "none":
		return 130, true
	case "walk":
		return 6, true
	}
	m := matchUnit.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "", "km/h", "kph", "kmph", "kmh":
		return v, true
	case "mph":
		return v * 1.609344, true
	case "knots":
		return v * 1.852, true
	}
	return 0, false
}

// speedLimit returns the posted limit in km/h clamped to a byte, 0 if
// unknown.
func speedLimit(tags osm.Tags) uint8 {
	v, ok := parseSpeed(tags.Find("maxspeed"))
	if !ok || v <= 0 {
		return 0
	}
	return uint8(min(v+0.5, 255))
}

// defaultSpeeds is the assumed free-flow speed in km/h when no limit is
// posted.
var defaultSpeeds = map[graph.RoadType]int{
	graph.Motorway:     100,
	graph.Trunk:        80,
	graph.Primary:      65,
	graph.Secondary:    55,
	graph.Tertiary:     45,
	graph.Unclassified: 35,
	graph.Residential:  30,
	graph.LivingStreet: 10,
	graph.Service:      15,
	graph.Track:        10,
	graph.OtherRoad:    25,
}

func freeFlow(t graph.RoadType, limit uint8) graph.SpeedCategory {
	if limit > 0 {
		return graph.SpeedCategoryFor(int(limit))
	}
	return graph.SpeedCategoryFor(defaultSpeeds[t])
}

func count(tags osm.Tags, key string) uint8 {
	n, err := strconv.Atoi(strings.TrimSpace(tags.Find(key)))
	if err != nil || n < 0 {
		return 0
	}
	return uint8(min(n, 255))
}

func surface(tags osm.Tags) graph.Surface {
	switch tags.Find("surface") {
	case "":
		return 0
	case "paved", "asphalt", "concrete", "concrete:plates", "paving_stones", "chipseal", "metal", "wood":
		return graph.Paved
	case "gravel", "fine_gravel", "pebblestone", "compacted":
		return graph.Gravel
	case "cobblestone", "sett", "unhewn_cobblestone", "cobblestone:flattened":
		return graph.Cobblestone
	}
	return graph.Unpaved
}

func bridge(tags osm.Tags) graph.BridgeType {
	switch tags.Find("bridge") {
	case "", "no":
		return 0
	case "viaduct":
		return graph.Viaduct
	case "movable":
		return graph.MovableBridge
	case "aqueduct":
		return graph.Aqueduct
	case "boardwalk":
		return graph.Boardwalk
	}
	return graph.Bridge
}

// grade is the vertical level of a way: the layer tag when present,
// otherwise one up for bridges and one down for tunnels.
func grade(tags osm.Tags) int8 {
	if l, err := strconv.Atoi(strings.TrimSpace(tags.Find("layer"))); err == nil {
		return int8(max(min(l, 5), -5))
	}
	if b := tags.Find("bridge"); b != "" && b != "no" {
		return 1
	}
	if t := tags.Find("tunnel"); t != "" && t != "no" {
		return -1
	}
	return 0
}

// nearerGround reports whether grade a is closer to ground than b, taking
// the lower one on ties.
func nearerGround(a, b int8) bool {
	da, db := max(a, -a), max(b, -b)
	return da < db || (da == db && a < b)
}

func flag(tags osm.Tags, key string) bool {
	switch tags.Find(key) {
	case "yes", "true", "1":
		return true
	}
	return false
}

func closed(tags osm.Tags) bool {
	switch tags.Find("access") {
	case "no", "private":
		return true
	}
	return tags.Find("motor_vehicle") == "no"
}

func underConstruction(tags osm.Tags) bool {
	return tags.Find("highway") == "construction" || flag(tags, "construction")
}

var nameKeys = map[graph.NameType][]string{
	graph.OfficialName:  {"name"},
	graph.AlternateName: {"alt_name", "old_name", "loc_name"},
	graph.RouteName:     {"ref"},
	graph.ExitName:      {"destination", "exit_to"},
}

// names collects up to graph.MaxNamesPerType distinct names per type.
func names(tags osm.Tags) map[graph.NameType][]string {
	var out map[graph.NameType][]string
	for _, t := range graph.NameTypes() {
		var list []string
		for _, key := range nameKeys[t] {
			for _, v := range strings.Split(tags.Find(key), ";") {
				v = strings.TrimSpace(v)
				if v == "" || len(list) == graph.MaxNamesPerType || slices.Contains(list, v) {
					continue
				}
				list = append(list, v)
			}
		}
		if len(list) > 0 {
			if out == nil {
				out = map[graph.NameType][]string{}
			}
			out[t] = list
		}
	}
	return out
}

func filterTags(tags osm.Tags, f TagFilter) osm.Tags {
	if f == nil {
		return tags
	}
	out := make(osm.Tags, 0, len(tags))
	for _, t := range tags {
		if f(t) {
			out = append(out, t)
		}
	}
	return out
}
