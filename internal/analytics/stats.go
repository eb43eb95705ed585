// Package analytics computes aggregate statistics over stored
// opportunities. Everything here is pure aggregation: no store writes.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

const (
	topValues = 20
	topPairs  = 10

	// recentWindow bounds the "recent additions" counter.
	recentWindow = 7 * 24 * time.Hour
)

// CompletenessFields are the optional fields tracked for completeness, in
// display order.
var CompletenessFields = []string{
	"description",
	"activity_location",
	"participant_profile",
	"activity_topics",
}

// FreqCount is one row of a frequency table.
type FreqCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// PairCount counts two values appearing on the same record.
type PairCount struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Count int    `json:"count"`
}

// Stats is the aggregate view of the stored dataset.
type Stats struct {
	TotalOpportunities int                `json:"total_opportunities"`
	RecentAdditions    int                `json:"recent_additions"`
	LastUpdate         time.Time          `json:"last_update"`
	Countries          []FreqCount        `json:"countries"`
	Topics             []FreqCount        `json:"topics"`
	Locations          []FreqCount        `json:"locations"`
	CountryPairs       []PairCount        `json:"country_pairs"`
	TopicPairs         []PairCount        `json:"topic_pairs"`
	Completeness       map[string]float64 `json:"completeness"`
	AvgCountries       float64            `json:"avg_countries_per_opportunity"`
	AvgTopics          float64            `json:"avg_topics_per_opportunity"`
	Insights           []string           `json:"insights"`
}

// Compute aggregates the given records. now anchors the recency window so
// callers and tests share one clock.
func Compute(opps []model.Opportunity, now time.Time) *Stats {
	stats := &Stats{
		TotalOpportunities: len(opps),
		Completeness:       make(map[string]float64),
	}
	if len(opps) == 0 {
		return stats
	}

	countries := make(map[string]int)
	topics := make(map[string]int)
	locations := make(map[string]int)
	countryPairs := make(map[[2]string]int)
	topicPairs := make(map[[2]string]int)
	filled := make(map[string]int)
	var countryTotal, topicTotal int

	for _, o := range opps {
		for _, c := range o.ParticipantCountries {
			countries[c]++
		}
		for _, tp := range o.TopicsList {
			topics[tp]++
		}
		if o.ActivityLocation != "" {
			locations[o.ActivityLocation]++
		}
		countPairs(countryPairs, o.ParticipantCountries)
		countPairs(topicPairs, o.TopicsList)
		countryTotal += len(o.ParticipantCountries)
		topicTotal += len(o.TopicsList)

		if now.Sub(o.ScrapedAt) <= recentWindow {
			stats.RecentAdditions++
		}
		if o.LastUpdated.After(stats.LastUpdate) {
			stats.LastUpdate = o.LastUpdated
		}

		for field, value := range map[string]string{
			"description":         o.Description,
			"activity_location":   o.ActivityLocation,
			"participant_profile": o.ParticipantProfile,
			"activity_topics":     o.ActivityTopics,
		} {
			if value != "" {
				filled[field]++
			}
		}
	}

	stats.Countries = topFrequencies(countries, topValues)
	stats.Topics = topFrequencies(topics, topValues)
	stats.Locations = topFrequencies(locations, topValues)
	stats.CountryPairs = topPairCounts(countryPairs, topPairs)
	stats.TopicPairs = topPairCounts(topicPairs, topPairs)
	stats.AvgCountries = float64(countryTotal) / float64(len(opps))
	stats.AvgTopics = float64(topicTotal) / float64(len(opps))

	for _, field := range CompletenessFields {
		stats.Completeness[field] = float64(filled[field]) / float64(len(opps)) * 100
	}

	stats.Insights = buildInsights(stats, len(countries), len(topics))
	return stats
}

// countPairs counts each unordered pair of values on one record.
func countPairs(pairs map[[2]string]int, values []string) {
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			a, b := values[i], values[j]
			if a > b {
				a, b = b, a
			}
			pairs[[2]string{a, b}]++
		}
	}
}

func topFrequencies(m map[string]int, n int) []FreqCount {
	out := make([]FreqCount, 0, len(m))
	for v, c := range m {
		out = append(out, FreqCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func topPairCounts(m map[[2]string]int, n int) []PairCount {
	out := make([]PairCount, 0, len(m))
	for pair, c := range m {
		out = append(out, PairCount{A: pair[0], B: pair[1], Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func buildInsights(stats *Stats, uniqueCountries, uniqueTopics int) []string {
	var insights []string

	if len(stats.Countries) > 0 {
		top := stats.Countries[0]
		insights = append(insights, fmt.Sprintf(
			"Most requested participant country: %s (%d opportunities)", top.Value, top.Count))
	}
	if len(stats.Topics) > 0 {
		top := stats.Topics[0]
		insights = append(insights, fmt.Sprintf(
			"Most common topic: %s (%d opportunities)", top.Value, top.Count))
	}
	if len(stats.Locations) > 0 {
		top := stats.Locations[0]
		insights = append(insights, fmt.Sprintf(
			"Most frequent activity location: %s (%d opportunities)", top.Value, top.Count))
	}
	insights = append(insights, fmt.Sprintf(
		"%d opportunities added in the last 7 days", stats.RecentAdditions))
	insights = append(insights, fmt.Sprintf(
		"%d distinct participant countries, %d distinct topics", uniqueCountries, uniqueTopics))

	for _, field := range CompletenessFields {
		if pct := stats.Completeness[field]; pct < 80 {
			insights = append(insights, fmt.Sprintf(
				"Field %s is only %.1f%% complete", field, pct))
		}
	}
	return insights
}
