package catalog

import (
	"encoding/json"
	"strings"
)

// Item is one listing row: the catalog identifier plus the listing title,
// kept as the extraction fallback when a detail page has no title heading.
type Item struct {
	Opid  string
	Title string
}

// flexID decodes an identifier the catalog serves either as a JSON number
// or as a quoted string, depending on the record's age.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type searchHit struct {
	Source struct {
		Opid  flexID `json:"opid"`
		Title string `json:"title"`
	} `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}
