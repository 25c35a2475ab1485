package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadgraph/pkg/graph"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRegion(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{
			name: "bare polygon",
			doc:  `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`,
			want: 1,
		},
		{
			name: "feature with multipolygon",
			doc: `{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[
				[[[0,0],[1,0],[1,1],[0,1],[0,0]]],
				[[[2,2],[3,2],[3,3],[2,3],[2,2]]]]}}`,
			want: 2,
		},
		{
			name: "feature collection",
			doc: `{"type":"FeatureCollection","features":[
				{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
				{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[5,5]}}]}`,
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region, err := LoadRegion(writeFile(t, "region.geojson", tt.doc))
			require.NoError(t, err)
			assert.Len(t, region, tt.want)
		})
	}
}

func TestLoadRegionWithoutPolygon(t *testing.T) {
	_, err := LoadRegion(writeFile(t, "point.geojson", `{"type":"Point","coordinates":[5,5]}`))
	assert.ErrorIs(t, err, ErrNoPolygon)
}

func TestLoadCountries(t *testing.T) {
	path := writeFile(t, "countries.geojson", `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"country":"MY"},"geometry":{"type":"Polygon","coordinates":[[[100,2],[104,2],[104,7],[100,7],[100,2]]]}},
		{"type":"Feature","properties":{"country":"SG"},"geometry":{"type":"Polygon","coordinates":[[[103.6,1.2],[104,1.2],[104,1.5],[103.6,1.5],[103.6,1.2]]]}},
		{"type":"Feature","properties":{"name":"sea"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}]}`)
	countries, err := LoadCountries(path)
	require.NoError(t, err)
	assert.Equal(t, 2, countries.Len())

	c, ok := countries.Country(orb.Point{103.8, 1.35})
	assert.True(t, ok)
	assert.Equal(t, graph.PackCountry("SG"), c)
	assert.Equal(t, "SG", c.String())

	c, ok = countries.Country(orb.Point{101.7, 3.1})
	assert.True(t, ok)
	assert.Equal(t, graph.PackCountry("MY"), c)

	_, ok = countries.Country(orb.Point{0.5, 0.5})
	assert.False(t, ok)
}
