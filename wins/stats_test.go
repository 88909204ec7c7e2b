package wins

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsboard/models"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "$1,250.50", want: "1250.50"},
		{input: "100", want: "100"},
		{input: "  +300 USD ", want: "300"},
		{input: "1.2.3", want: "1.2.3"},
		{input: "abc", want: ""},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAmount(tt.input))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{input: "100", want: 100},
		{input: "1250.50", want: 1250.5},
		{input: "1.2.3", want: 1.2},
		{input: ".5", want: 0.5},
		{input: "5.", want: 5},
		{input: ".", want: 0},
		{input: "", want: 0},
		{input: "abc", want: 0},
		{input: "12abc", want: 12},
		{input: "1e3", want: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseAmount(tt.input), 1e-9)
		})
	}
}

func TestComputeStats(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	win := func(id, amount string, createdAt time.Time) models.WinRecord {
		return models.WinRecord{ID: id, AmountWon: amount, CreatedAt: createdAt}
	}

	t.Run("weekly partition", func(t *testing.T) {
		records := []models.WinRecord{
			win("a", "100", now),
			win("b", "250", now),
			win("c", "80", now.Add(-10*24*time.Hour)),
		}

		stats := ComputeStats(records, now)
		assert.Equal(t, 3, stats.WinsPosted)
		assert.Equal(t, 2, stats.WinsThisWeek)
		assert.InDelta(t, 350, stats.TotalWonThisWeek, 1e-9)
		require.NotNil(t, stats.BiggestWin)
		assert.Equal(t, "250", stats.BiggestWin.AmountWon)
	})

	t.Run("week boundary is inclusive", func(t *testing.T) {
		records := []models.WinRecord{
			win("edge", "10", now.Add(-Week)),
			win("old", "99", now.Add(-Week-time.Nanosecond)),
		}

		stats := ComputeStats(records, now)
		assert.Equal(t, 1, stats.WinsThisWeek)
		require.NotNil(t, stats.BiggestWin)
		assert.Equal(t, "edge", stats.BiggestWin.ID)
	})

	t.Run("tie keeps most recent", func(t *testing.T) {
		records := []models.WinRecord{
			win("newest", "500", now),
			win("older", "500", now.Add(-time.Hour)),
		}

		stats := ComputeStats(records, now)
		require.NotNil(t, stats.BiggestWin)
		assert.Equal(t, "newest", stats.BiggestWin.ID)
	})

	t.Run("unparsable amounts count as zero", func(t *testing.T) {
		records := []models.WinRecord{
			win("a", ".", now),
			win("b", "", now),
		}

		stats := ComputeStats(records, now)
		assert.Equal(t, 2, stats.WinsThisWeek)
		assert.Zero(t, stats.TotalWonThisWeek)
		require.NotNil(t, stats.BiggestWin)
		assert.Equal(t, "a", stats.BiggestWin.ID)
	})

	t.Run("empty partition", func(t *testing.T) {
		records := []models.WinRecord{
			win("old", "80", now.Add(-30*24*time.Hour)),
		}

		stats := ComputeStats(records, now)
		assert.Equal(t, 1, stats.WinsPosted)
		assert.Zero(t, stats.WinsThisWeek)
		assert.Zero(t, stats.TotalWonThisWeek)
		assert.Nil(t, stats.BiggestWin)
	})

	t.Run("no records", func(t *testing.T) {
		stats := ComputeStats(nil, now)
		assert.Equal(t, models.Stats{}, stats)
	})
}

func TestFilterRecords(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	records := []models.WinRecord{
		{ID: "a", UserTier: models.TierPremium, CreatedAt: now},
		{ID: "b", UserTier: models.TierFree, CreatedAt: now.Add(-8 * 24 * time.Hour)},
		{ID: "c", UserTier: models.TierPremium, CreatedAt: now.Add(-9 * 24 * time.Hour)},
	}
	ids := func(records []models.WinRecord) []string {
		out := make([]string, 0, len(records))
		for _, record := range records {
			out = append(out, record.ID)
		}
		return out
	}

	tests := []struct {
		filter  string
		want    []string
		wantErr bool
	}{
		{filter: "", want: []string{"a", "b", "c"}},
		{filter: "all", want: []string{"a", "b", "c"}},
		{filter: "week", want: []string{"a"}},
		{filter: "premium", want: []string{"a", "c"}},
		{filter: "highrollers", want: []string{}},
		{filter: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			got, err := FilterRecords(records, tt.filter, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}
