package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidarity-tools/harvest-cli/internal/analytics"
	"github.com/solidarity-tools/harvest-cli/internal/model"
)

func TestFormatOpportunityList(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	opps := []model.Opportunity{
		{
			Opid:                 "70001",
			Title:                "Community garden volunteering",
			ActivityLocation:     "Lisbon, Portugal",
			ParticipantCountries: []string{"Estonia", "Latvia"},
			TopicsList:           []string{"Environment"},
			LastUpdated:          now,
		},
		{
			Opid:        "70002",
			Title:       "A title that runs well past the forty character display cutoff",
			LastUpdated: now,
		},
	}

	var buf bytes.Buffer
	formatOpportunityList(&buf, opps)

	output := buf.String()
	assert.Contains(t, output, "OPID")
	assert.Contains(t, output, "70001")
	assert.Contains(t, output, "Community garden volunteering")
	assert.Contains(t, output, "Lisbon, Portugal")
	assert.Contains(t, output, "Estonia, Latvia")
	assert.Contains(t, output, "2026-03-15")
	assert.Contains(t, output, "2 opportunities")
	// Long titles are truncated with an ellipsis.
	assert.Contains(t, output, "...")
	assert.NotContains(t, output, "display cutoff")
}

func TestFormatSessionsList(t *testing.T) {
	started := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)
	sessions := []model.HarvestSession{
		{
			ID:          "abc12345-6789-0000-0000-000000000000",
			Status:      model.SessionStatusCompleted,
			StartedAt:   started,
			CompletedAt: &completed,
			TotalFound:  50,
			Successful:  48,
			Failed:      2,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Status:    model.SessionStatusRunning,
			StartedAt: started,
		},
	}

	var buf bytes.Buffer
	formatSessionsList(&buf, sessions)

	output := buf.String()
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "1m30s")
	assert.Contains(t, output, "2026-03-15 09:00")
	assert.Contains(t, output, "def12345")
	assert.Contains(t, output, "running")
}

func TestFormatStats(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	opps := []model.Opportunity{
		{
			Opid:                 "1",
			Title:                "a",
			URL:                  "u",
			Description:          "filled",
			ActivityLocation:     "Lisbon",
			ParticipantCountries: []string{"Estonia", "Latvia"},
			TopicsList:           []string{"Environment"},
			ScrapedAt:            now.Add(-time.Hour),
			LastUpdated:          now,
		},
		{
			Opid:        "2",
			Title:       "b",
			URL:         "u",
			ScrapedAt:   now.Add(-30 * 24 * time.Hour),
			LastUpdated: now.Add(-30 * 24 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatStats(&buf, analytics.Compute(opps, now))

	output := buf.String()
	assert.Contains(t, output, "Total opportunities:")
	assert.Contains(t, output, "Recent additions (7 days):")
	assert.Contains(t, output, "Top recruiting countries:")
	assert.Contains(t, output, "Estonia")
	assert.Contains(t, output, "Country co-occurrence:")
	assert.Contains(t, output, "Estonia + Latvia:")
	assert.Contains(t, output, "Field completeness:")
	assert.Contains(t, output, "description:")
	assert.Contains(t, output, "Insights:")
}

func TestFormatStats_EmptyDataset(t *testing.T) {
	var buf bytes.Buffer
	formatStats(&buf, analytics.Compute(nil, time.Now()))

	output := buf.String()
	assert.Contains(t, output, "Total opportunities:")
	assert.NotContains(t, output, "Top recruiting countries:")
}

func TestFilterFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	registerFilterFlags(cmd)
	cmd.Flags().Int("limit", 0, "")

	require.NoError(t, cmd.Flags().Set("country", "Estonia,Latvia"))
	require.NoError(t, cmd.Flags().Set("topic", "Environment"))
	require.NoError(t, cmd.Flags().Set("limit", "5"))

	filter := filterFromFlags(cmd)
	assert.Equal(t, []string{"Estonia", "Latvia"}, filter.Countries)
	assert.Equal(t, []string{"Environment"}, filter.Topics)
	assert.Equal(t, 5, filter.Limit)
	assert.Empty(t, filter.Locations)
	assert.False(t, filter.Empty())
}

func TestFilterFromFlags_Empty(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	registerFilterFlags(cmd)
	cmd.Flags().Int("limit", 0, "")

	filter := filterFromFlags(cmd)
	assert.True(t, filter.Empty())
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestTruncateCell(t *testing.T) {
	assert.Equal(t, "short", truncateCell("short", 10))
	assert.Equal(t, "exactlyten", truncateCell("exactlyten", 10))
	assert.Equal(t, "toolong...", truncateCell("toolongvalue", 10))
}
