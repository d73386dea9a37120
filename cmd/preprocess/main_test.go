package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/road_router/pkg/config"
	osmparser "github.com/azybler/road_router/pkg/osm"
	"github.com/azybler/road_router/pkg/routing"
)

func TestParseBBox(t *testing.T) {
	b, err := parseBBox("1.15, 103.6,1.48,104.1")
	require.NoError(t, err)
	assert.Equal(t, osmparser.BBox{MinLat: 1.15, MinLng: 103.6, MaxLat: 1.48, MaxLng: 104.1}, b)

	for _, bad := range []string{"", "1,2,3", "1,2,3,4,5", "a,2,3,4", "3,2,1,4"} {
		_, err := parseBBox(bad)
		assert.Error(t, err, bad)
	}
}

func TestSelectBBoxPresets(t *testing.T) {
	b, err := selectBBox(options{kl: true, bbox: "0,0,1,1"})
	require.NoError(t, err)
	assert.Equal(t, 2.75, b.MinLat)

	b, err = selectBBox(options{singapore: true})
	require.NoError(t, err)
	assert.Equal(t, 104.1, b.MaxLng)

	b, err = selectBBox(options{})
	require.NoError(t, err)
	assert.True(t, b.IsZero())
}

func TestSelectProfiles(t *testing.T) {
	cfg := config.Default()

	all, err := selectProfiles(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Profiles, all)

	some, err := selectProfiles(cfg, []string{"pedestrian"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "pedestrian", some[0].Name)

	_, err = selectProfiles(cfg, []string{"boat"})
	assert.ErrorIs(t, err, routing.ErrUnknownProfile)
}
