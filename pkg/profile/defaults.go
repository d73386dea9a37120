package profile

// Car is the default motor vehicle profile.
func Car() Profile {
	return Profile{
		Name:    "car",
		Metric:  MetricTime,
		Handler: HandlerDefault,
		Speeds: map[string]float32{
			"motorway": 100, "motorway_link": 60,
			"trunk": 80, "trunk_link": 50,
			"primary": 65, "primary_link": 45,
			"secondary": 55, "secondary_link": 40,
			"tertiary": 45, "tertiary_link": 35,
			"unclassified": 35, "residential": 30,
			"living_street": 10, "service": 15, "road": 30,
		},
		Access:   []string{"access", "vehicle", "motor_vehicle", "motorcar"},
		Oneway:   true,
		MaxSpeed: true,
	}
}

// Bicycle is the default cycling profile.
func Bicycle() Profile {
	return Profile{
		Name:    "bicycle",
		Metric:  MetricTime,
		Handler: HandlerDefault,
		Speeds: map[string]float32{
			"primary": 15, "primary_link": 15,
			"secondary": 15, "secondary_link": 15,
			"tertiary": 15, "tertiary_link": 15,
			"unclassified": 15, "residential": 15, "living_street": 12,
			"service": 12, "road": 15, "track": 10,
			"cycleway": 18, "path": 12,
		},
		Access: []string{"access", "vehicle", "bicycle"},
		Oneway: true,
	}
}

// Pedestrian is the default walking profile. It ignores oneway tags and
// minimises distance.
func Pedestrian() Profile {
	return Profile{
		Name:    "pedestrian",
		Metric:  MetricDistance,
		Handler: HandlerAugmented,
		Speeds: map[string]float32{
			"primary": 5, "primary_link": 5,
			"secondary": 5, "secondary_link": 5,
			"tertiary": 5, "tertiary_link": 5,
			"unclassified": 5, "residential": 5, "living_street": 5,
			"service": 5, "road": 5, "track": 5,
			"footway": 5, "path": 5, "pedestrian": 5, "steps": 3, "bridleway": 4,
			"cycleway": 5,
		},
		Access: []string{"access", "foot"},
	}
}

// Defaults returns the built-in profiles.
func Defaults() []Profile {
	return []Profile{Car(), Bicycle(), Pedestrian()}
}
