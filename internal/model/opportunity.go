package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Opportunity is one volunteering opportunity from the catalog. Opid is the
// catalog's external identifier and never changes once assigned.
type Opportunity struct {
	Opid                string `json:"opid"`
	Title               string `json:"title"`
	URL                 string `json:"url"`
	Description         string `json:"description,omitempty"`
	Accommodation       string `json:"accommodation_food_transport,omitempty"`
	ParticipantProfile  string `json:"participant_profile,omitempty"`
	ActivityDates       string `json:"activity_dates,omitempty"`
	ActivityLocation    string `json:"activity_location,omitempty"`
	ParticipantsFrom    string `json:"looking_for_participants_from,omitempty"`
	ActivityTopics      string `json:"activity_topics,omitempty"`
	ApplicationDeadline string `json:"application_deadline,omitempty"`

	// Normalized sets derived from ParticipantsFrom and ActivityTopics:
	// comma-split, trimmed, deduplicated case-insensitively.
	ParticipantCountries []string `json:"participant_countries"`
	TopicsList           []string `json:"topics_list"`

	// ScrapedAt is set once, at the first successful upsert. LastUpdated
	// advances on every successful upsert.
	ScrapedAt   time.Time `json:"scraped_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Validate checks the required fields. Everything beyond opid, title, and URL
// is optional and may be empty.
func (o *Opportunity) Validate() error {
	if o.Opid == "" {
		return eris.New("model: opportunity missing opid")
	}
	if o.Title == "" {
		return eris.Errorf("model: opportunity %s missing title", o.Opid)
	}
	if o.URL == "" {
		return eris.Errorf("model: opportunity %s missing url", o.Opid)
	}
	return nil
}
