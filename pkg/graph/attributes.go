package graph

import "strings"

// RoadState is the traversability of an edge. Zero means unknown.
type RoadState uint8

const (
	OneWay RoadState = 1 + iota
	TwoWay
)

func (s RoadState) String() string {
	switch s {
	case OneWay:
		return "ONE_WAY"
	case TwoWay:
		return "TWO_WAY"
	}
	return "UNKNOWN"
}

// The classification enumerations below are opaque value types produced by
// tag extraction. Zero is the null value of each.

type RoadType uint8

const (
	Motorway RoadType = 1 + iota
	Trunk
	Primary
	Secondary
	Tertiary
	Unclassified
	Residential
	LivingStreet
	Service
	Track
	OtherRoad
)

var roadTypeNames = [...]string{"", "motorway", "trunk", "primary", "secondary", "tertiary",
	"unclassified", "residential", "living_street", "service", "track", "other"}

func (t RoadType) String() string {
	if int(t) < len(roadTypeNames) {
		return roadTypeNames[t]
	}
	return "invalid"
}

type RoadSubType uint8

const (
	MainRoad RoadSubType = 1 + iota
	Ramp
	ConnectingRoad
	Roundabout
	ServiceRoad
)

var roadSubTypeNames = [...]string{"", "main", "ramp", "connecting_road", "roundabout", "service"}

func (t RoadSubType) String() string {
	if int(t) < len(roadSubTypeNames) {
		return roadSubTypeNames[t]
	}
	return "invalid"
}

// FunctionalClass ranks roads from 1 (most important) to 5.
type FunctionalClass uint8

// NullFunctionalClass is the bit pattern of an unset functional class.
const NullFunctionalClass FunctionalClass = 7

type Surface uint8

const (
	Paved Surface = 1 + iota
	Unpaved
	Gravel
	Cobblestone
)

var surfaceNames = [...]string{"", "paved", "unpaved", "gravel", "cobblestone"}

func (s Surface) String() string {
	if int(s) < len(surfaceNames) {
		return surfaceNames[s]
	}
	return "invalid"
}

type BridgeType uint8

const (
	Bridge BridgeType = 1 + iota
	Viaduct
	MovableBridge
	Aqueduct
	Boardwalk
)

var bridgeTypeNames = [...]string{"", "bridge", "viaduct", "movable", "aqueduct", "boardwalk"}

func (b BridgeType) String() string {
	if int(b) < len(bridgeTypeNames) {
		return bridgeTypeNames[b]
	}
	return "invalid"
}

// SpeedCategory buckets free-flow speed; 1 is the fastest.
type SpeedCategory uint8

// SpeedCategoryFor maps a speed in km/h to its category.
func SpeedCategoryFor(kmh int) SpeedCategory {
	switch {
	case kmh <= 0:
		return 0
	case kmh > 130:
		return 1
	case kmh > 100:
		return 2
	case kmh > 90:
		return 3
	case kmh > 70:
		return 4
	case kmh > 50:
		return 5
	case kmh > 30:
		return 6
	case kmh > 10:
		return 7
	}
	return 8
}

// NameType distinguishes the kinds of road names an edge carries.
type NameType int

const (
	OfficialName NameType = iota
	AlternateName
	RouteName
	ExitName
	nameTypeCount
)

// MaxNamesPerType caps the names kept for each NameType.
const MaxNamesPerType = 4

var nameTypeNames = [nameTypeCount]string{"official", "alternate", "route", "exit"}

func (n NameType) String() string { return nameTypeNames[n] }

// NameTypes lists every name type in storage order.
func NameTypes() []NameType {
	return []NameType{OfficialName, AlternateName, RouteName, ExitName}
}

// Country is an ISO 3166 alpha code of up to three letters packed into an
// int32. Zero means unknown.
type Country int32

func PackCountry(code string) Country {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || len(code) > 3 {
		return 0
	}
	var c int32
	for i := 0; i < len(code); i++ {
		c = c<<8 | int32(code[i])
	}
	return Country(c)
}

func (c Country) String() string {
	var b []byte
	for v := int32(c); v != 0; v >>= 8 {
		b = append([]byte{byte(v & 0xFF)}, b...)
	}
	return string(b)
}
