package model

// QueryFilter selects stored opportunities. Within one criterion the provided
// values are OR-ed; across criteria the filter is a conjunction. All matching
// is case-insensitive substring.
type QueryFilter struct {
	Countries           []string `json:"countries,omitempty"`
	Topics              []string `json:"topics,omitempty"`
	Locations           []string `json:"locations,omitempty"`
	TitleKeywords       []string `json:"title_keywords,omitempty"`
	DescriptionKeywords []string `json:"description_keywords,omitempty"`
	Limit               int      `json:"limit,omitempty"`
}

// Empty reports whether no criteria were supplied (limit aside).
func (f QueryFilter) Empty() bool {
	return len(f.Countries) == 0 &&
		len(f.Topics) == 0 &&
		len(f.Locations) == 0 &&
		len(f.TitleKeywords) == 0 &&
		len(f.DescriptionKeywords) == 0
}
