package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpportunityValidate(t *testing.T) {
	valid := Opportunity{
		Opid:  "74912",
		Title: "Community gardening in Lisbon",
		URL:   "https://youth.europa.eu/solidarity/opportunity/74912_en",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Opportunity)
		want   string
	}{
		{"missing opid", func(o *Opportunity) { o.Opid = "" }, "missing opid"},
		{"missing title", func(o *Opportunity) { o.Title = "" }, "missing title"},
		{"missing url", func(o *Opportunity) { o.URL = "" }, "missing url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			err := o.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSessionDuration(t *testing.T) {
	start := time.Now().UTC().Add(-2 * time.Minute)
	end := start.Add(90 * time.Second)

	s := HarvestSession{StartedAt: start, CompletedAt: &end}
	assert.Equal(t, 90*time.Second, s.Duration())

	running := HarvestSession{StartedAt: start}
	assert.GreaterOrEqual(t, running.Duration(), 2*time.Minute)
}

func TestQueryFilterEmpty(t *testing.T) {
	assert.True(t, QueryFilter{Limit: 10}.Empty())
	assert.False(t, QueryFilter{Countries: []string{"Spain"}}.Empty())
	assert.False(t, QueryFilter{DescriptionKeywords: []string{"garden"}}.Empty())
}
