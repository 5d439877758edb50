package webmercator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToWebMercator(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float64
		x, y     float64
	}{
		{name: "origin", lon: 0, lat: 0, x: 0.5, y: 0.5},
		{name: "west edge", lon: -180, lat: 0, x: 0, y: 0.5},
		{name: "east edge", lon: 180, lat: 0, x: 1, y: 0.5},
		{name: "north limit", lon: 0, lat: MaxLatitude, x: 0.5, y: 0},
		{name: "south limit", lon: 0, lat: -MaxLatitude, x: 0.5, y: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := ToWebMercator(tt.lon, tt.lat)
			require.InDelta(t, tt.x, x, 1e-12)
			require.InDelta(t, tt.y, y, 1e-12)
		})
	}
}

func TestWebMercatorRoundTrip(t *testing.T) {
	for lon := -180.0; lon < 180; lon += 7.3 {
		for lat := -84.9; lat < 85; lat += 3.7 {
			x, y := ToWebMercator(lon, lat)
			gotLon, gotLat := FromWebMercator(x, y)
			require.InDelta(t, lon, gotLon, 1e-9)
			require.InDelta(t, lat, gotLat, 1e-9)
		}
	}
}

func TestEPSG3857RoundTrip(t *testing.T) {
	for x := 0.0; x <= 1; x += 0.05 {
		for y := 0.0; y <= 1; y += 0.05 {
			mx, my := ToEPSG3857(x, y)
			gx, gy := FromEPSG3857(mx, my)
			require.InDelta(t, x, gx, 1e-12)
			require.InDelta(t, y, gy, 1e-12)
		}
	}
}

func TestToEPSG3857Corners(t *testing.T) {
	mx, my := ToEPSG3857(0, 0)
	require.Equal(t, -EPSGRescale, mx)
	require.Equal(t, EPSGRescale, my)

	mx, my = ToEPSG3857(1, 1)
	require.Equal(t, EPSGRescale, mx)
	require.Equal(t, -EPSGRescale, my)
}

func TestClampLatitude(t *testing.T) {
	got, err := ClampLatitude(89)
	require.NoError(t, err)
	require.Equal(t, MaxLatitude, got)

	got, err = ClampLatitude(-90)
	require.NoError(t, err)
	require.Equal(t, -MaxLatitude, got)

	got, err = ClampLatitude(12.5)
	require.NoError(t, err)
	require.Equal(t, 12.5, got)

	for _, bad := range []float64{math.NaN(), 90.5, -91, math.Inf(1)} {
		_, err = ClampLatitude(bad)
		require.ErrorIs(t, err, ErrLatitude)
	}
}

func TestParseProjection(t *testing.T) {
	p, err := ParseProjection("epsg:3857")
	require.NoError(t, err)
	require.Equal(t, EPSG3857, p)
	require.Equal(t, "epsg:3857", p.String())

	p, err = ParseProjection("normal")
	require.NoError(t, err)
	require.Equal(t, Normal, p)

	_, err = ParseProjection("epsg:4326")
	require.Error(t, err)
}
