// Package profile turns edge tags into weight factors for one mode of travel.
package profile

import (
	"strconv"
	"strings"

	"github.com/paulmach/osm"
	"github.com/pkg/errors"

	"github.com/azybler/road_router/pkg/weight"
)

// Metric selects what a profile minimises.
type Metric string

const (
	MetricTime     Metric = "time"
	MetricDistance Metric = "distance"
)

// Handler names the weight representation a profile is contracted with.
const (
	HandlerDefault   = "default"
	HandlerAugmented = "augmented"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid profile")

// Profile is a named speed table with access and oneway rules.
type Profile struct {
	Name    string             `yaml:"name"`
	Metric  Metric             `yaml:"metric"`
	Handler string             `yaml:"handler"`
	Speeds  map[string]float32 `yaml:"speeds"` // km/h per highway value
	// Access lists the access keys from least to most specific. The last
	// one present on a way decides.
	Access   []string `yaml:"access"`
	Oneway   bool     `yaml:"oneway"`
	MaxSpeed bool     `yaml:"maxspeed"`
}

// Validate checks the profile for use.
func (p Profile) Validate() error {
	if p.Name == "" {
		return errors.Wrap(ErrInvalid, "missing name")
	}
	switch p.Metric {
	case MetricTime, MetricDistance:
	default:
		return errors.Wrapf(ErrInvalid, "%s: unknown metric %q", p.Name, p.Metric)
	}
	switch p.Handler {
	case "", HandlerDefault, HandlerAugmented:
	default:
		return errors.Wrapf(ErrInvalid, "%s: unknown handler %q", p.Name, p.Handler)
	}
	if len(p.Speeds) == 0 {
		return errors.Wrapf(ErrInvalid, "%s: empty speed table", p.Name)
	}
	for hw, s := range p.Speeds {
		if s <= 0 {
			return errors.Wrapf(ErrInvalid, "%s: speed for %s must be positive", p.Name, hw)
		}
	}
	return nil
}

// Augmented reports whether the profile carries distance and time in its
// contracted weights.
func (p Profile) Augmented() bool { return p.Handler == HandlerAugmented }

// Factor returns the per-metre factor of a way with tags. A zero factor
// means the profile cannot use the way.
func (p Profile) Factor(tags osm.Tags) weight.Factor {
	speed := p.Speeds[tags.Find("highway")]
	if speed <= 0 || !p.allowed(tags) {
		return weight.Factor{}
	}
	if p.MaxSpeed {
		if ms, ok := parseMaxSpeed(tags.Find("maxspeed")); ok && ms < speed {
			speed = ms
		}
	}

	dir := weight.Both
	if p.Oneway {
		dir = direction(tags)
	}
	if dir == weight.None {
		return weight.Factor{}
	}

	secondsPerMetre := 3.6 / speed
	f := weight.Factor{Value: secondsPerMetre, Time: secondsPerMetre, Direction: dir}
	if p.Metric == MetricDistance {
		f.Value = 1
	}
	return f
}

// Source precomputes the factors of every edge profile.
func (p Profile) Source(edgeProfiles []osm.Tags) weight.Source {
	table := make([]weight.Factor, len(edgeProfiles))
	for i, tags := range edgeProfiles {
		table[i] = p.Factor(tags)
	}
	return func(id uint16) weight.Factor {
		if int(id) >= len(table) {
			return weight.Factor{}
		}
		return table[id]
	}
}

func (p Profile) allowed(tags osm.Tags) bool {
	ok := true
	for _, key := range p.Access {
		switch tags.Find(key) {
		case "no", "private", "agricultural", "forestry", "delivery":
			ok = false
		case "yes", "designated", "permissive", "destination", "customers":
			ok = true
		}
	}
	return ok
}

// direction applies implied and explicit oneway tags.
func direction(tags osm.Tags) weight.Direction {
	forward, backward := true, true

	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible", "alternating":
		forward, backward = false, false
	}

	switch {
	case forward && backward:
		return weight.Both
	case forward:
		return weight.Forward
	case backward:
		return weight.Backward
	}
	return weight.None
}

// parseMaxSpeed reads values like "50", "50 km/h" and "30 mph".
func parseMaxSpeed(v string) (float32, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	factor := float32(1)
	switch {
	case strings.HasSuffix(v, "mph"):
		factor = 1.609344
		v = strings.TrimSpace(strings.TrimSuffix(v, "mph"))
	case strings.HasSuffix(v, "km/h"):
		v = strings.TrimSpace(strings.TrimSuffix(v, "km/h"))
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil || f <= 0 {
		return 0, false
	}
	return float32(f) * factor, true
}
