package occurrence

import "github.com/biorecords/biorecords/pkg/schema"

func percent(name string) schema.Field {
	lo, hi := 0.0, 100.0
	return schema.Field{Name: name, Kind: schema.KindFloat, Min: &lo, Max: &hi}
}

func count(name string) schema.Field {
	lo := 0.0
	return schema.Field{Name: name, Kind: schema.KindInt, Min: &lo}
}

func lookup(name, table string) schema.Field {
	return schema.Field{Name: name, Kind: schema.KindLookup, Lookup: table}
}

// ObsTypes returns the observation group types recorded against area
// encounters.
func ObsTypes() []schema.Type {
	return []schema.Type{
		{
			Name: "ObservationGroup", Label: "Observation group",
			Fields: []schema.Field{
				{Name: "comments", Kind: schema.KindText},
			},
		},
		{
			Name: "FileAttachment", Label: "File attachment",
			Fields: []schema.Field{
				{Name: "attachment", Kind: schema.KindFile, Required: true},
				{Name: "title", Kind: schema.KindString},
				{Name: "author", Kind: schema.KindUser},
				{Name: "confidential", Kind: schema.KindBool, Default: false},
			},
		},
		{
			Name: "AreaAssessment", Label: "Area assessment",
			Fields: []schema.Field{
				{Name: "survey_type", Kind: schema.KindChoice, Choices: []string{"partial", "edge", "full"}, Default: "partial"},
				count("area_surveyed_m2"),
				count("survey_duration_min"),
			},
		},
		{
			Name: "HabitatComposition", Label: "Habitat composition",
			Fields: []schema.Field{
				lookup("landform", LookupLandform),
				{Name: "rock_type", Kind: schema.KindLookup, Lookup: LookupRockType},
				percent("loose_rock_percent"),
				lookup("soil_type", LookupSoilType),
				lookup("soil_colour", LookupSoilColour),
				lookup("drainage", LookupDrainage),
				lookup("surface_type", LookupSurfaceType),
			},
		},
		{
			Name: "HabitatCondition", Label: "Habitat condition",
			Fields: []schema.Field{
				percent("pristine"),
				percent("excellent"),
				percent("very_good"),
				percent("good"),
				percent("degraded"),
				percent("completely_degraded"),
			},
		},
		{
			Name: "FireHistory", Label: "Fire history",
			Fields: []schema.Field{
				{Name: "last_fire_date", Kind: schema.KindDate},
				lookup("fire_intensity", LookupFireIntensity),
			},
		},
		{
			Name: "VegetationClassification", Label: "Vegetation classification",
			Fields: []schema.Field{
				lookup("level1", LookupVegetationClassification),
				lookup("level2", LookupVegetationClassification),
				lookup("level3", LookupVegetationClassification),
				lookup("level4", LookupVegetationClassification),
			},
		},
		{
			Name: "PlantCount", Label: "Plant count",
			Fields: []schema.Field{
				lookup("count_method", LookupCountMethod),
				lookup("count_accuracy", LookupCountAccuracy),
				{Name: "counted_subject", Kind: schema.KindString},
				count("no_alive_mature"),
				count("no_alive_juvenile"),
				count("no_alive_seedlings"),
				count("no_dead_mature"),
				count("no_dead_juvenile"),
				count("no_dead_seedlings"),
				count("no_flowering_plants"),
				count("no_clonal"),
				count("no_vegetative"),
				{Name: "population_structure_notes", Kind: schema.KindText},
				{Name: "simple_alive", Kind: schema.KindInt},
				{Name: "simple_dead", Kind: schema.KindInt},
			},
		},
		{
			Name: "AssociatedSpecies", Label: "Associated species",
			Fields: []schema.Field{
				{Name: "taxon", Kind: schema.KindTaxon, Required: true},
				{Name: "comments", Kind: schema.KindText},
			},
		},
		{
			Name: "AnimalObservation", Label: "Animal observation",
			Fields: []schema.Field{
				{Name: "detection_method", Kind: schema.KindString},
				{Name: "species_id_confidence", Kind: schema.KindString},
				{Name: "maturity", Kind: schema.KindString},
				{Name: "health", Kind: schema.KindString},
				{Name: "cause_of_death", Kind: schema.KindString},
				{Name: "distinguishing_features", Kind: schema.KindText},
				{Name: "actions_taken", Kind: schema.KindText},
				{Name: "actions_required", Kind: schema.KindText},
				{Name: "observation_details", Kind: schema.KindText},
				{Name: "secondary_signs", Kind: schema.KindLookups, Lookup: LookupSecondarySigns},
				count("no_adult_male"),
				count("no_adult_female"),
				count("no_adult_unknown"),
				count("no_juvenile_male"),
				count("no_juvenile_female"),
				count("no_juvenile_unknown"),
				count("no_dependent_young"),
			},
		},
		{
			Name: "PhysicalSample", Label: "Physical sample",
			Fields: []schema.Field{
				lookup("sample_type", LookupSampleType),
				{Name: "sample_label", Kind: schema.KindString},
				{Name: "collector_id", Kind: schema.KindString},
				lookup("sample_destination", LookupSampleDestination),
				lookup("permit_type", LookupPermitType),
				{Name: "permit_id", Kind: schema.KindString},
			},
		},
	}
}

// RegisterObsTypes adds the area encounter observation types to r.
func RegisterObsTypes(r *schema.Registry) {
	types := ObsTypes()
	for i := range types {
		types[i].Domain = schema.DomainOccurrence
	}
	r.MustRegister(types...)
}
