// Package export writes the opportunity dataset to CSV, XLSX, and JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

// Columns is the fixed header order for tabular exports.
var Columns = []string{
	"opid", "title", "url", "description", "accommodation_food_transport",
	"participant_profile", "activity_dates", "activity_location",
	"looking_for_participants_from", "activity_topics", "application_deadline",
	"participant_countries", "topics_list", "scraped_at", "last_updated",
}

// Formats lists the supported export formats.
var Formats = []string{"csv", "xlsx", "json"}

// ToFile writes opps to path in the given format.
func ToFile(path, format string, opps []model.Opportunity) error {
	switch format {
	case "csv":
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", path)
		}
		defer f.Close() //nolint:errcheck
		return WriteCSV(f, opps)
	case "xlsx":
		return WriteXLSX(path, opps)
	case "json":
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", path)
		}
		defer f.Close() //nolint:errcheck
		return WriteJSON(f, opps)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// DefaultFilename builds a timestamped export filename.
func DefaultFilename(format string, now time.Time) string {
	return "opportunities_export_" + now.Format("20060102_150405") + "." + format
}

// WriteCSV writes a header row followed by one row per opportunity.
func WriteCSV(w io.Writer, opps []model.Opportunity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i := range opps {
		if err := cw.Write(rowValues(&opps[i])); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", opps[i].Opid)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes a single-sheet workbook. tealeg/xlsx saves to a path.
func WriteXLSX(path string, opps []model.Opportunity) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Opportunities")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range Columns {
		header.AddCell().SetString(col)
	}
	for i := range opps {
		row := sheet.AddRow()
		for _, v := range rowValues(&opps[i]) {
			row.AddCell().SetString(v)
		}
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// WriteJSON writes the records as an indented JSON array.
func WriteJSON(w io.Writer, opps []model.Opportunity) error {
	if opps == nil {
		opps = []model.Opportunity{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(opps), "export: encode json")
}

func rowValues(o *model.Opportunity) []string {
	return []string{
		o.Opid, o.Title, o.URL, o.Description, o.Accommodation,
		o.ParticipantProfile, o.ActivityDates, o.ActivityLocation,
		o.ParticipantsFrom, o.ActivityTopics, o.ApplicationDeadline,
		joinSet(o.ParticipantCountries), joinSet(o.TopicsList),
		o.ScrapedAt.UTC().Format(time.RFC3339),
		o.LastUpdated.UTC().Format(time.RFC3339),
	}
}

// joinSet renders a set-valued field for tabular formats.
func joinSet(values []string) string {
	return strings.Join(values, "; ")
}
