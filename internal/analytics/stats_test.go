package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func mkOpp(opid string, countries, topics []string) model.Opportunity {
	return model.Opportunity{
		Opid:                 opid,
		Title:                "Project " + opid,
		URL:                  "https://example.org/" + opid,
		Description:          "desc",
		ActivityLocation:     "Tartu, Estonia",
		ParticipantProfile:   "profile",
		ActivityTopics:       "topics",
		ParticipantCountries: countries,
		TopicsList:           topics,
		ScrapedAt:            testNow.Add(-48 * time.Hour),
		LastUpdated:          testNow.Add(-time.Hour),
	}
}

func TestCompute_Empty(t *testing.T) {
	stats := Compute(nil, testNow)
	assert.Equal(t, 0, stats.TotalOpportunities)
	assert.Equal(t, 0, stats.RecentAdditions)
	assert.Empty(t, stats.Countries)
	assert.Empty(t, stats.Insights)
}

func TestCompute_FrequencyTables(t *testing.T) {
	opps := []model.Opportunity{
		mkOpp("1", []string{"Estonia", "Latvia"}, []string{"Environment"}),
		mkOpp("2", []string{"Estonia"}, []string{"Environment", "Culture"}),
		mkOpp("3", []string{"Estonia", "Portugal"}, []string{"Culture"}),
	}

	stats := Compute(opps, testNow)
	assert.Equal(t, 3, stats.TotalOpportunities)

	require.NotEmpty(t, stats.Countries)
	assert.Equal(t, FreqCount{Value: "Estonia", Count: 3}, stats.Countries[0])
	// Ties order alphabetically.
	assert.Equal(t, FreqCount{Value: "Latvia", Count: 1}, stats.Countries[1])
	assert.Equal(t, FreqCount{Value: "Portugal", Count: 1}, stats.Countries[2])

	require.Len(t, stats.Topics, 2)
	assert.Equal(t, 2, stats.Topics[0].Count)

	require.NotEmpty(t, stats.Locations)
	assert.Equal(t, FreqCount{Value: "Tartu, Estonia", Count: 3}, stats.Locations[0])
}

func TestCompute_TopNTruncation(t *testing.T) {
	var opps []model.Opportunity
	for i := 0; i < 30; i++ {
		opps = append(opps, mkOpp(
			fmt.Sprintf("%d", i),
			[]string{fmt.Sprintf("Country-%02d", i)},
			nil,
		))
	}

	stats := Compute(opps, testNow)
	assert.Len(t, stats.Countries, 20)
}

func TestCompute_Pairs(t *testing.T) {
	opps := []model.Opportunity{
		mkOpp("1", []string{"Estonia", "Latvia", "Portugal"}, []string{"Environment", "Culture"}),
		mkOpp("2", []string{"Latvia", "Estonia"}, nil),
	}

	stats := Compute(opps, testNow)

	// Pairs are unordered: (Latvia, Estonia) counts toward (Estonia, Latvia).
	require.NotEmpty(t, stats.CountryPairs)
	assert.Equal(t, PairCount{A: "Estonia", B: "Latvia", Count: 2}, stats.CountryPairs[0])
	assert.Len(t, stats.CountryPairs, 3)

	require.Len(t, stats.TopicPairs, 1)
	assert.Equal(t, PairCount{A: "Culture", B: "Environment", Count: 1}, stats.TopicPairs[0])
}

func TestCompute_RecentAdditions(t *testing.T) {
	fresh := mkOpp("1", nil, nil)
	fresh.ScrapedAt = testNow.Add(-2 * 24 * time.Hour)
	stale := mkOpp("2", nil, nil)
	stale.ScrapedAt = testNow.Add(-10 * 24 * time.Hour)

	stats := Compute([]model.Opportunity{fresh, stale}, testNow)
	assert.Equal(t, 1, stats.RecentAdditions)
}

func TestCompute_LastUpdate(t *testing.T) {
	a := mkOpp("1", nil, nil)
	a.LastUpdated = testNow.Add(-time.Hour)
	b := mkOpp("2", nil, nil)
	b.LastUpdated = testNow.Add(-30 * time.Minute)

	stats := Compute([]model.Opportunity{a, b}, testNow)
	assert.Equal(t, b.LastUpdated, stats.LastUpdate)
}

func TestCompute_Completeness(t *testing.T) {
	full := mkOpp("1", nil, nil)
	sparse := mkOpp("2", nil, nil)
	sparse.Description = ""
	sparse.ParticipantProfile = ""

	stats := Compute([]model.Opportunity{full, sparse}, testNow)
	assert.InDelta(t, 50.0, stats.Completeness["description"], 0.01)
	assert.InDelta(t, 50.0, stats.Completeness["participant_profile"], 0.01)
	assert.InDelta(t, 100.0, stats.Completeness["activity_location"], 0.01)
	assert.InDelta(t, 100.0, stats.Completeness["activity_topics"], 0.01)
}

func TestCompute_Averages(t *testing.T) {
	opps := []model.Opportunity{
		mkOpp("1", []string{"Estonia", "Latvia"}, []string{"Environment"}),
		mkOpp("2", nil, []string{"Environment", "Culture", "Sport"}),
	}

	stats := Compute(opps, testNow)
	assert.InDelta(t, 1.0, stats.AvgCountries, 0.01)
	assert.InDelta(t, 2.0, stats.AvgTopics, 0.01)
}

func TestCompute_Insights(t *testing.T) {
	opps := []model.Opportunity{
		mkOpp("1", []string{"Estonia"}, []string{"Environment"}),
		mkOpp("2", []string{"Estonia"}, []string{"Environment"}),
	}
	opps[1].Description = ""

	stats := Compute(opps, testNow)
	require.NotEmpty(t, stats.Insights)
	assert.Contains(t, stats.Insights[0], "Estonia")
	assert.Contains(t, stats.Insights[1], "Environment")

	var lowCompleteness bool
	for _, line := range stats.Insights {
		if line == "Field description is only 50.0% complete" {
			lowCompleteness = true
		}
	}
	assert.True(t, lowCompleteness, "expected a low-completeness insight for description")
}
