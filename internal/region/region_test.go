package region

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tilemosaic/webmercator"
)

func TestParseBBox(t *testing.T) {
	e, err := ParseBBox("-0.1, -0.1, 0.1, 0.1")
	require.NoError(t, err)

	want, err := webmercator.FromLonLatBox(-0.1, 0.1, -0.1, 0.1)
	require.NoError(t, err)
	require.True(t, want.Equal(e))

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "1,2,0,3"} {
		_, err := ParseBBox(bad)
		require.Error(t, err, bad)
	}
}

func TestParseCenter(t *testing.T) {
	e, err := ParseCenter("0,0", "0.01")
	require.NoError(t, err)
	x, y := e.Center()
	require.InDelta(t, 0.5, x, 1e-12)
	require.InDelta(t, 0.5, y, 1e-12)
	require.InDelta(t, 0.01, e.Width(), 1e-12)
	require.InDelta(t, 0.01, e.Height(), 1e-12)

	e, err = ParseCenter("0,0", "0.02,0.01")
	require.NoError(t, err)
	require.InDelta(t, 0.02, e.Width(), 1e-12)
	require.InDelta(t, 0.01, e.Height(), 1e-12)

	_, err = ParseCenter("0", "0.01")
	require.Error(t, err)
	_, err = ParseCenter("0,0", "x")
	require.Error(t, err)
}

func TestFromGeoJSON(t *testing.T) {
	want, err := webmercator.FromLonLatBox(4.8, 5.0, 52.3, 52.4)
	require.NoError(t, err)

	tests := []struct {
		name string
		data string
	}{
		{
			name: "feature collection",
			data: `{"type":"FeatureCollection","features":[
				{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[4.8,52.3]}},
				{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[5.0,52.4]}}
			]}`,
		},
		{
			name: "feature",
			data: `{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[4.8,52.3],[5.0,52.4]]}}`,
		},
		{
			name: "geometry",
			data: `{"type":"Polygon","coordinates":[[[4.8,52.3],[5.0,52.3],[5.0,52.4],[4.8,52.4],[4.8,52.3]]]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := FromGeoJSON([]byte(tt.data))
			require.NoError(t, err)
			require.True(t, want.Equal(e), "got %s", e)
		})
	}
}

func TestFromGeoJSONPoint(t *testing.T) {
	e, err := FromGeoJSON([]byte(`{"type":"Point","coordinates":[4.9,52.37]}`))
	require.NoError(t, err)
	require.Greater(t, e.Width(), 0.0)

	minLon, maxLon, _, _ := e.LonLatBox()
	require.Less(t, minLon, 4.9)
	require.Greater(t, maxLon, 4.9)
}

func TestFromGeoJSONInvalid(t *testing.T) {
	_, err := FromGeoJSON([]byte(`not json`))
	require.Error(t, err)
}
