package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		raw   string
		valid bool
	}{
		{"2024-01", true},
		{"2024-12", true},
		{"0001-01", true},
		{"2024-13", false},
		{"2024-00", false},
		{"2024-1", false},
		{"202401", false},
		{"2024-01-01", false},
		{"", false},
		{"march 2024", false},
	}

	for _, tc := range cases {
		period, err := ParsePeriod(tc.raw)
		if tc.valid {
			assert.NoError(t, err, tc.raw)
			assert.Equal(t, Period(tc.raw), period)
		} else {
			assert.ErrorIs(t, err, ErrInvalidPeriod, tc.raw)
		}
	}
}

func TestNewPeriod(t *testing.T) {
	period, err := NewPeriod(2024, time.March)
	assert.NoError(t, err)
	assert.Equal(t, Period("2024-03"), period)

	_, err = NewPeriod(2024, time.Month(13))
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = NewPeriod(0, time.January)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestPeriodBounds(t *testing.T) {
	period := Period("2024-02")
	start, end := period.Bounds()
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestPeriodPrevNext(t *testing.T) {
	assert.Equal(t, Period("2023-12"), Period("2024-01").Prev())
	assert.Equal(t, Period("2024-02"), Period("2024-01").Next())
	assert.Equal(t, Period("2025-01"), Period("2024-12").Next())
}

func TestPeriodOrderingIsChronological(t *testing.T) {
	// Lexicographic comparison on the canonical form must match time order.
	assert.True(t, Period("2023-12") < Period("2024-01"))
	assert.True(t, Period("2024-09") < Period("2024-10"))
}

func TestPeriodsBetween(t *testing.T) {
	periods, err := PeriodsBetween("2023-11", "2024-02")
	assert.NoError(t, err)
	assert.Equal(t, []Period{"2023-11", "2023-12", "2024-01", "2024-02"}, periods)

	periods, err = PeriodsBetween("2024-02", "2024-02")
	assert.NoError(t, err)
	assert.Equal(t, []Period{"2024-02"}, periods)

	_, err = PeriodsBetween("2024-03", "2024-02")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestSnapshotValidate(t *testing.T) {
	valid := &MetricsSnapshot{
		Period:         "2024-03",
		MRR:            300,
		ARR:            3600,
		MonthlyRevenue: 250,
		ChurnRate:      5,
		CollectionRate: 70,
	}
	assert.NoError(t, valid.Validate())

	badARR := *valid
	badARR.ARR = 3500
	assert.ErrorIs(t, badARR.Validate(), ErrInvalidSnapshot)

	badPeriod := *valid
	badPeriod.Period = "2024-3"
	assert.ErrorIs(t, badPeriod.Validate(), ErrInvalidPeriod)

	negative := *valid
	negative.MonthlyRevenue = -1
	assert.ErrorIs(t, negative.Validate(), ErrInvalidSnapshot)

	badRate := *valid
	badRate.ChurnRate = 101
	assert.ErrorIs(t, badRate.Validate(), ErrInvalidSnapshot)
}
