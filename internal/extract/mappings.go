package extract

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Field keys sections can map onto. Anything else in a mappings file is a
// typo and rejected.
const (
	fieldDescription         = "description"
	fieldAccommodation       = "accommodation_food_transport"
	fieldParticipantProfile  = "participant_profile"
	fieldActivityDates       = "activity_dates"
	fieldActivityLocation    = "activity_location"
	fieldParticipantsFrom    = "looking_for_participants_from"
	fieldActivityTopics      = "activity_topics"
	fieldApplicationDeadline = "application_deadline"
)

var knownFieldKeys = map[string]bool{
	fieldDescription:         true,
	fieldAccommodation:       true,
	fieldParticipantProfile:  true,
	fieldActivityDates:       true,
	fieldActivityLocation:    true,
	fieldParticipantsFrom:    true,
	fieldActivityTopics:      true,
	fieldApplicationDeadline: true,
}

// DefaultMappings returns the section-heading → field mapping the catalog's
// detail pages use today.
func DefaultMappings() map[string]string {
	return map[string]string{
		"Description": fieldDescription,
		"Accommodation, food and transport arrangements": fieldAccommodation,
		"Participant profile":                            fieldParticipantProfile,
		"Activity dates":                                 fieldActivityDates,
		"Activity location":                              fieldActivityLocation,
		"Looking for participants from":                  fieldParticipantsFrom,
		"Activity topics":                                fieldActivityTopics,
		"Deadline for applications":                      fieldApplicationDeadline,
	}
}

type mappingsFile struct {
	Sections map[string]string `yaml:"sections"`
}

// LoadMappings reads a YAML file overriding the default section mappings,
// for when the catalog renames its page headings. The file replaces the
// defaults wholesale.
func LoadMappings(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read mappings file %s", path)
	}

	var f mappingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "extract: parse mappings file %s", path)
	}
	if len(f.Sections) == 0 {
		return nil, eris.Errorf("extract: mappings file %s defines no sections", path)
	}
	for heading, key := range f.Sections {
		if !knownFieldKeys[key] {
			return nil, eris.Errorf("extract: section %q maps to unknown field %q", heading, key)
		}
	}
	return f.Sections, nil
}
