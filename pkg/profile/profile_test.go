package profile

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/road_router/pkg/weight"
)

func tags(kv ...string) osm.Tags {
	var t osm.Tags
	for i := 0; i+1 < len(kv); i += 2 {
		t = append(t, osm.Tag{Key: kv[i], Value: kv[i+1]})
	}
	return t
}

func TestDirection(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		want weight.Direction
	}{
		{"default", tags("highway", "residential"), weight.Both},
		{"motorway implied", tags("highway", "motorway"), weight.Forward},
		{"motorway_link implied", tags("highway", "motorway_link"), weight.Forward},
		{"roundabout implied", tags("highway", "residential", "junction", "roundabout"), weight.Forward},
		{"oneway=yes", tags("highway", "primary", "oneway", "yes"), weight.Forward},
		{"oneway=true", tags("highway", "primary", "oneway", "true"), weight.Forward},
		{"oneway=1", tags("highway", "primary", "oneway", "1"), weight.Forward},
		{"oneway=-1", tags("highway", "primary", "oneway", "-1"), weight.Backward},
		{"oneway=reverse", tags("highway", "primary", "oneway", "reverse"), weight.Backward},
		{"oneway=no overrides implied", tags("highway", "motorway", "oneway", "no"), weight.Both},
		{"reversible", tags("highway", "primary", "oneway", "reversible"), weight.None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, direction(tt.tags))
		})
	}
}

func TestCarFactor(t *testing.T) {
	car := Car()
	require.NoError(t, car.Validate())

	tests := []struct {
		name  string
		tags  osm.Tags
		speed float32 // km/h, 0 when not usable
		dir   weight.Direction
	}{
		{"residential", tags("highway", "residential"), 30, weight.Both},
		{"motorway", tags("highway", "motorway"), 100, weight.Forward},
		{"footway", tags("highway", "footway"), 0, weight.None},
		{"private", tags("highway", "residential", "access", "private"), 0, weight.None},
		{"motor_vehicle=no", tags("highway", "residential", "motor_vehicle", "no"), 0, weight.None},
		{"access=no but motorcar=yes", tags("highway", "service", "access", "no", "motorcar", "yes"), 15, weight.Both},
		{"maxspeed lowers", tags("highway", "primary", "maxspeed", "40"), 40, weight.Both},
		{"maxspeed mph", tags("highway", "primary", "maxspeed", "30 mph"), 30 * 1.609344, weight.Both},
		{"maxspeed never raises", tags("highway", "residential", "maxspeed", "80"), 30, weight.Both},
		{"reversible", tags("highway", "primary", "oneway", "reversible"), 0, weight.None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := car.Factor(tt.tags)
			assert.Equal(t, tt.dir, f.Direction)
			if tt.speed == 0 {
				assert.Zero(t, f.Value)
				return
			}
			assert.InDelta(t, 3.6/tt.speed, f.Value, 1e-6)
			assert.Equal(t, f.Value, f.Time)
		})
	}
}

func TestPedestrianIgnoresOneway(t *testing.T) {
	p := Pedestrian()
	require.NoError(t, p.Validate())
	f := p.Factor(tags("highway", "residential", "oneway", "yes"))
	assert.Equal(t, weight.Both, f.Direction)
	assert.Equal(t, float32(1), f.Value, "distance metric")
	assert.InDelta(t, 3.6/5, f.Time, 1e-6)
	assert.True(t, p.Augmented())
	assert.False(t, Car().Augmented())

	assert.Equal(t, weight.None, p.Factor(tags("highway", "motorway")).Direction)
}

func TestSource(t *testing.T) {
	src := Car().Source([]osm.Tags{
		tags("highway", "residential"),
		tags("highway", "footway"),
	})
	assert.Equal(t, weight.Both, src(0).Direction)
	assert.Equal(t, weight.None, src(1).Direction)
	assert.Equal(t, weight.Factor{}, src(7), "unknown ids are unusable")
}

func TestValidate(t *testing.T) {
	for _, p := range Defaults() {
		assert.NoError(t, p.Validate(), p.Name)
	}

	bad := Car()
	bad.Name = ""
	assert.ErrorIs(t, bad.Validate(), ErrInvalid)

	bad = Car()
	bad.Metric = "fuel"
	assert.ErrorIs(t, bad.Validate(), ErrInvalid)

	bad = Car()
	bad.Handler = "fancy"
	assert.ErrorIs(t, bad.Validate(), ErrInvalid)

	bad = Car()
	bad.Speeds = map[string]float32{"primary": -1}
	assert.ErrorIs(t, bad.Validate(), ErrInvalid)
}
