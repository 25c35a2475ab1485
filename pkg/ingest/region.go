package ingest

import (
	"encoding/json"
	"os"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"

	"roadgraph/pkg/graph"
)

// ErrNoPolygon is returned for GeoJSON documents without polygon geometry.
var ErrNoPolygon = errors.New("ingest: no polygon geometry")

// LoadRegion reads a clipping region from a GeoJSON file holding a
// polygon, a multipolygon, or features with either.
func LoadRegion(path string) (orb.MultiPolygon, error) {
	features, err := readFeatures(path)
	if err != nil {
		return nil, err
	}
	var region orb.MultiPolygon
	for _, f := range features {
		region = append(region, multiPolygon(f.Geometry)...)
	}
	if len(region) == 0 {
		return nil, errors.Wrap(ErrNoPolygon, path)
	}
	return region, nil
}

func readFeatures(path string) ([]*geojson.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		return fc.Features, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		return []*geojson.Feature{f}, nil
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		return []*geojson.Feature{geojson.NewFeature(g)}, nil
	}
}

func multiPolygon(g *geojson.Geometry) orb.MultiPolygon {
	if g == nil {
		return nil
	}
	switch g.Type {
	case geojson.GeometryPolygon:
		return orb.MultiPolygon{polygon(g.Polygon)}
	case geojson.GeometryMultiPolygon:
		mp := make(orb.MultiPolygon, len(g.MultiPolygon))
		for i, p := range g.MultiPolygon {
			mp[i] = polygon(p)
		}
		return mp
	}
	return nil
}

func polygon(rings [][][]float64) orb.Polygon {
	p := make(orb.Polygon, len(rings))
	for i, ring := range rings {
		r := make(orb.Ring, len(ring))
		for j, c := range ring {
			r[j] = orb.Point{c[0], c[1]}
		}
		p[i] = r
	}
	return p
}

type countryArea struct {
	country graph.Country
	area    orb.MultiPolygon
	bound   orb.Bound
}

// PolygonCountries resolves countries from a set of border polygons.
type PolygonCountries struct {
	areas []countryArea
}

// Add registers the border of the country with ISO code code.
func (p *PolygonCountries) Add(code string, area orb.MultiPolygon) {
	if c := graph.PackCountry(code); c != 0 && len(area) > 0 {
		p.areas = append(p.areas, countryArea{country: c, area: area, bound: area.Bound()})
	}
}

func (p *PolygonCountries) Country(pt orb.Point) (graph.Country, bool) {
	for _, a := range p.areas {
		if a.bound.Contains(pt) && planar.MultiPolygonContains(a.area, pt) {
			return a.country, true
		}
	}
	return 0, false
}

func (p *PolygonCountries) Len() int { return len(p.areas) }

// LoadCountries reads country borders from GeoJSON features carrying the
// ISO code in their "country" property.
func LoadCountries(path string) (*PolygonCountries, error) {
	features, err := readFeatures(path)
	if err != nil {
		return nil, err
	}
	p := &PolygonCountries{}
	for _, f := range features {
		code, err := f.PropertyString("country")
		if err != nil {
			continue
		}
		p.Add(code, multiPolygon(f.Geometry))
	}
	if p.Len() == 0 {
		return nil, errors.Wrapf(ErrNoPolygon, "%s: no feature with a country property", path)
	}
	return p, nil
}
