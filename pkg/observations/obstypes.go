package observations

import "github.com/biorecords/biorecords/pkg/schema"

var presence = []string{PresenceNA, PresenceAbsent, PresencePresent}

func text(name string) schema.Field    { return schema.Field{Name: name, Kind: schema.KindText} }
func str(name string) schema.Field     { return schema.Field{Name: name, Kind: schema.KindString} }
func boolean(name string) schema.Field { return schema.Field{Name: name, Kind: schema.KindBool} }

func measure(name string) schema.Field {
	lo := 0.0
	return schema.Field{Name: name, Kind: schema.KindFloat, Min: &lo}
}

func tally(name string) schema.Field {
	lo := 0.0
	return schema.Field{Name: name, Kind: schema.KindInt, Min: &lo}
}

func bearing(name string) schema.Field {
	lo, hi := 0.0, 360.0
	return schema.Field{Name: name, Kind: schema.KindFloat, Min: &lo, Max: &hi}
}

func choice(name string, def string, choices ...string) schema.Field {
	f := schema.Field{Name: name, Kind: schema.KindChoice, Choices: choices}
	if def != "" {
		f.Default = def
	}
	return f
}

// ObsTypes returns the observation types recorded against field encounters.
func ObsTypes() []schema.Type {
	return []schema.Type{
		{
			Name: "MediaAttachment", Label: "Media attachment",
			Fields: []schema.Field{
				choice("media_type", "photograph", "datasheet", "journal", "communication", "photograph", "other"),
				str("title"),
				{Name: "attachment", Kind: schema.KindFile, Required: true},
			},
		},
		{
			Name: "TagObservation", Label: "Tag observation",
			Fields: []schema.Field{
				choice("tag_type", "flipper-tag", "flipper-tag", "pit-tag", "sat-tag", "data-logger", "other"),
				{Name: "name", Kind: schema.KindString, Required: true},
				str("tag_location"),
				choice("status", "resighted", "ordered", "produced", "delivered", "allocated",
					"applied-new", "resighted", "reclinched", "removed", "not-recorded"),
				{Name: "handler", Kind: schema.KindUser},
				{Name: "recorder", Kind: schema.KindUser},
				text("comments"),
			},
		},
		{
			Name: "NestTagObservation", Label: "Nest tag observation",
			Fields: []schema.Field{
				choice("status", "resighted", "applied-new", "resighted", "removed"),
				str("flipper_tag_id"),
				{Name: "date_nest_laid", Kind: schema.KindDate},
				str("tag_label"),
				text("comments"),
			},
		},
		{
			Name: "ManagementAction", Label: "Management action",
			Fields: []schema.Field{
				{Name: "management_actions", Kind: schema.KindText, Required: true},
				text("comments"),
			},
		},
		{
			Name: "TurtleMorphometric", Label: "Turtle morphometric",
			Fields: []schema.Field{
				measure("curved_carapace_length_mm"),
				choice("curved_carapace_length_accuracy", "", "unknown", "estimated", "measured"),
				measure("curved_carapace_length_notch_mm"),
				measure("curved_carapace_width_mm"),
				measure("tail_length_carapace_mm"),
				measure("tail_length_vent_mm"),
				measure("tail_length_plastron_mm"),
				measure("body_depth_mm"),
				measure("maximum_head_width_mm"),
				measure("maximum_head_length_mm"),
				measure("body_weight_g"),
				{Name: "handler", Kind: schema.KindUser},
				{Name: "recorder", Kind: schema.KindUser},
			},
		},
		{
			Name: "HatchlingMorphometric", Label: "Hatchling morphometric",
			Fields: []schema.Field{
				measure("straight_carapace_length_mm"),
				measure("straight_carapace_width_mm"),
				measure("body_weight_g"),
			},
		},
		{
			Name: "DugongMorphometric", Label: "Dugong morphometric",
			Fields: []schema.Field{
				measure("body_length_mm"),
				measure("body_girth_mm"),
				measure("tail_fluke_width_mm"),
				choice("tusks_found", PresenceNA, presence...),
			},
		},
		{
			Name: "TurtleNestDisturbanceObservation", Label: "Turtle nest disturbance",
			Fields: []schema.Field{
				{Name: "disturbance_cause", Kind: schema.KindString, Required: true},
				choice("disturbance_cause_confidence", "guess", "guess", "expert-opinion", "validated"),
				choice("disturbance_severity", "na", "negligible", "partly", "completely", "na"),
				text("comments"),
			},
		},
		{
			Name: "TurtleNestObservation", Label: "Turtle nest excavation",
			Fields: []schema.Field{
				choice("nest_position", "unknown", "unknown", "below-hwm", "above-hwm", "veg-edge", "in-dune"),
				choice("eggs_laid", "", "yes", "no"),
				tally("egg_count"),
				tally("no_egg_shells"),
				tally("no_live_hatchlings_neck_of_nest"),
				tally("no_live_hatchlings"),
				tally("no_dead_hatchlings"),
				tally("no_undeveloped_eggs"),
				tally("no_unhatched_eggs"),
				tally("no_unhatched_term"),
				tally("no_depredated_eggs"),
				measure("nest_depth_top"),
				measure("nest_depth_bottom"),
				measure("sand_temp"),
				measure("air_temp"),
				measure("water_temp"),
				measure("egg_temp"),
				text("comments"),
			},
		},
		{
			Name: "HatchlingEmergence", Label: "Hatchling emergence",
			Fields: []schema.Field{
				bearing("bearing_to_water_degrees"),
				bearing("bearing_leftmost_track_degrees"),
				bearing("bearing_rightmost_track_degrees"),
				tally("no_tracks_main_group"),
				tally("no_tracks_main_group_min"),
				tally("no_tracks_main_group_max"),
				choice("outlier_tracks_present", PresenceNA, presence...),
				str("path_to_sea_comments"),
				choice("hatchling_emergence_time_known", PresenceNA, presence...),
				choice("light_sources_present", PresenceNA, presence...),
				choice("hatchling_emergence_time_accuracy", "", "na", "same-night", "plusminus-2h", "plusminus-6h", "plusminus-12h"),
				str("cloud_cover_at_emergence"),
			},
		},
		{
			Name: "EmergenceOutlier", Label: "Hatchling emergence outlier",
			Fields: []schema.Field{
				bearing("bearing_outlier_track_degrees"),
				tally("outlier_group_size"),
				str("outlier_track_comment"),
			},
		},
		{
			Name: "LightSource", Label: "Light source",
			Fields: []schema.Field{
				bearing("bearing_light_degrees"),
				choice("light_source_type", "natural", "natural", "artificial"),
				text("light_source_description"),
			},
		},
		{
			Name: "TurtleDamageObservation", Label: "Turtle damage",
			Fields: []schema.Field{
				{Name: "body_part", Kind: schema.KindString, Required: true},
				{Name: "damage_type", Kind: schema.KindString, Required: true},
				choice("damage_age", "healed-entirely", "healed-entirely", "healed-partially", "fresh"),
				text("description"),
			},
		},
		{
			Name: "TrackTallyObservation", Label: "Track tally",
			Fields: []schema.Field{
				{Name: "species", Kind: schema.KindString, Required: true},
				{Name: "nest_age", Kind: schema.KindString, Required: true},
				{Name: "nest_type", Kind: schema.KindString, Required: true},
				tally("tally"),
			},
		},
		{
			Name: "TurtleNestDisturbanceTallyObservation", Label: "Nest disturbance tally",
			Fields: []schema.Field{
				{Name: "species", Kind: schema.KindString, Required: true},
				{Name: "disturbance_cause", Kind: schema.KindString, Required: true},
				tally("no_nests_disturbed"),
				tally("no_tracks_encountered"),
				text("comments"),
			},
		},
		{
			Name: "TemperatureLoggerSettings", Label: "Temperature logger settings",
			Fields: []schema.Field{
				tally("logging_interval"),
				{Name: "recording_start", Kind: schema.KindDateTime},
				boolean("tested"),
			},
		},
		{
			Name: "DispatchRecord", Label: "Logger dispatch",
			Fields: []schema.Field{
				{Name: "sent_to", Kind: schema.KindUser},
			},
		},
		{
			Name: "TemperatureLoggerDeployment", Label: "Temperature logger deployment",
			Fields: []schema.Field{
				measure("depth_mm"),
				boolean("marker1_present"),
				measure("distance_to_marker1_mm"),
				boolean("marker2_present"),
				measure("distance_to_marker2_mm"),
				str("habitat"),
				measure("distance_to_vegetation_mm"),
			},
		},
	}
}

// RegisterObsTypes adds the field encounter observation types to r.
func RegisterObsTypes(r *schema.Registry) {
	types := ObsTypes()
	for i := range types {
		types[i].Domain = schema.DomainObservations
	}
	r.MustRegister(types...)
}
