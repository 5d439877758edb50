package tilecache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMapStore(t *testing.T) {
	s := NewMapStore()
	k1 := testKey("a", 1, 2, 3)
	k2 := testKey("b", 1, 2, 3)

	_, ok := s.Get(k1)
	require.False(t, ok)
	require.Empty(t, s.Sources())

	s.Set(k1, Entry{Image: tileImage()})
	s.Set(k1, Entry{Image: tileImage()})
	s.Set(k2, Entry{Err: errors.New("boom")})

	require.Equal(t, 2, s.Len())
	require.True(t, s.Has(k1))
	require.ElementsMatch(t, []string{"a", "b"}, s.Sources())

	entry, ok := s.Get(k2)
	require.True(t, ok)
	require.True(t, entry.Failed())

	s.Clear()
	require.Equal(t, 0, s.Len())
	require.False(t, s.Has(k1))
}

func TestLRUStoreEvictsLeastRecentlyUsed(t *testing.T) {
	s := NewLRUStore(2)
	k1 := testKey("osm", 1, 0, 1)
	k2 := testKey("osm", 0, 1, 1)
	k3 := testKey("osm", 1, 1, 1)

	s.Set(k1, Entry{Image: tileImage()})
	s.Set(k2, Entry{Image: tileImage()})

	_, ok := s.Get(k1)
	require.True(t, ok)

	s.Set(k3, Entry{Image: tileImage()})
	require.Eventually(t, func() bool { return s.Len() == 2 }, time.Second, 5*time.Millisecond)
	require.True(t, s.Has(k1))
	require.False(t, s.Has(k2))
	require.True(t, s.Has(k3))

	s.Clear()
	require.Equal(t, 0, s.Len())
}

func TestNoopStore(t *testing.T) {
	s := NewNoopStore()
	k := testKey("osm", 0, 0, 0)
	s.Set(k, Entry{Image: tileImage()})
	require.False(t, s.Has(k))
	require.Equal(t, 0, s.Len())
}

func TestNewStore(t *testing.T) {
	log := zap.NewNop()
	tests := []struct {
		kind string
		want Store
	}{
		{kind: "", want: &MapStore{}},
		{kind: "memory", want: &MapStore{}},
		{kind: "lru", want: &LRUStore{}},
		{kind: "disabled", want: &NoopStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got, err := NewStore(tt.kind, 10, log)
			require.NoError(t, err)
			require.IsType(t, tt.want, got)
		})
	}

	_, err := NewStore("redis", 10, log)
	require.Error(t, err)
}

func TestKeyString(t *testing.T) {
	require.Equal(t, "osm|10/511/510", testKey("osm", 511, 510, 10).String())
}
