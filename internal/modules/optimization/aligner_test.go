package optimization

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlign_InnerJoinSortedAscending(t *testing.T) {
	aligner := NewReturnSeriesAligner(zerolog.Nop())

	// B starts one day later and is given out of order
	a := seriesFrom("AAA", 0, 0.01, 0.02, 0.03, 0.04, 0.05)
	b := AssetSeries{
		Symbol: "BBB",
		Observations: []Observation{
			{Date: "2024-01-05", Return: -0.04},
			{Date: "2024-01-02", Return: -0.01},
			{Date: "2024-01-04", Return: -0.03},
			{Date: "2024-01-03", Return: -0.02},
			{Date: "2024-01-06", Return: -0.05},
		},
	}

	rm, err := aligner.Align([]AssetSeries{a, b})
	require.NoError(t, err)

	rows, cols := rm.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, []string{"AAA", "BBB"}, rm.Symbols)

	for i := 1; i < len(rm.Dates); i++ {
		assert.True(t, rm.Dates[i].After(rm.Dates[i-1]), "dates must be strictly increasing")
	}
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), rm.Dates[0])

	// Row 0 is 2024-01-02
	assert.InDelta(t, 0.02, rm.Data.At(0, 0), 1e-12)
	assert.InDelta(t, -0.01, rm.Data.At(0, 1), 1e-12)
	assert.InDelta(t, 0.05, rm.Data.At(3, 0), 1e-12)
	assert.InDelta(t, -0.04, rm.Data.At(3, 1), 1e-12)
}

func TestAlign_ColumnsFollowInputOrder(t *testing.T) {
	aligner := NewReturnSeriesAligner(zerolog.Nop())

	rm, err := aligner.Align([]AssetSeries{
		seriesFrom("ZZZ", 0, 0.1, 0.2, 0.3),
		seriesFrom("AAA", 0, 0.4, 0.5, 0.6),
		seriesFrom("MMM", 0, 0.7, 0.8, 0.9),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZZ", "AAA", "MMM"}, rm.Symbols)
	assert.InDelta(t, 0.4, rm.Data.At(0, 1), 1e-12)
}

func TestAlign_AcceptsTimestamps(t *testing.T) {
	aligner := NewReturnSeriesAligner(zerolog.Nop())

	a := seriesFrom("AAA", 0, 0.01, 0.02, 0.03)
	b := AssetSeries{
		Symbol: "BBB",
		Observations: []Observation{
			{Date: "2024-01-01T00:00:00Z", Return: 0.1},
			{Date: "2024-01-02T00:00:00Z", Return: 0.2},
			{Date: "2024-01-03T00:00:00Z", Return: 0.3},
		},
	}

	rm, err := aligner.Align([]AssetSeries{a, b})
	require.NoError(t, err)
	rows, _ := rm.Dims()
	assert.Equal(t, 3, rows)
}

func TestAlign_SkipsShortSeries(t *testing.T) {
	aligner := NewReturnSeriesAligner(zerolog.Nop())

	rm, err := aligner.Align([]AssetSeries{
		seriesFrom("AAA", 0, 0.01, 0.02, 0.03, 0.04),
		seriesFrom("SHORT", 0, 0.01, 0.02),
		seriesFrom("BBB", 0, 0.05, 0.06, 0.07, 0.08),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, rm.Symbols)
}

func TestAlign_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		series   []AssetSeries
		expected error
	}{
		{
			name:     "no series",
			series:   nil,
			expected: ErrInsufficientData,
		},
		{
			name: "single asset",
			series: []AssetSeries{
				seriesFrom("AAA", 0, 0.01, 0.02, 0.03),
			},
			expected: ErrInsufficientData,
		},
		{
			name: "only one asset long enough",
			series: []AssetSeries{
				seriesFrom("AAA", 0, 0.01, 0.02, 0.03),
				seriesFrom("BBB", 0, 0.01, 0.02),
			},
			expected: ErrInsufficientData,
		},
		{
			name: "disjoint dates",
			series: []AssetSeries{
				seriesFrom("AAA", 0, 0.01, 0.02, 0.03),
				seriesFrom("BBB", 10, 0.01, 0.02, 0.03),
			},
			expected: ErrNoOverlap,
		},
		{
			name: "too few aligned rows",
			series: []AssetSeries{
				seriesFrom("AAA", 0, 0.01, 0.02, 0.03),
				seriesFrom("BBB", 1, 0.01, 0.02, 0.03),
			},
			expected: ErrInsufficientData,
		},
		{
			name: "empty symbol",
			series: []AssetSeries{
				seriesFrom("", 0, 0.01, 0.02, 0.03),
				seriesFrom("BBB", 0, 0.01, 0.02, 0.03),
			},
			expected: ErrInvalidInput,
		},
		{
			name: "duplicate symbol",
			series: []AssetSeries{
				seriesFrom("AAA", 0, 0.01, 0.02, 0.03),
				seriesFrom("AAA", 0, 0.01, 0.02, 0.03),
			},
			expected: ErrInvalidInput,
		},
		{
			name: "unparseable date",
			series: []AssetSeries{
				seriesFrom("AAA", 0, 0.01, 0.02, 0.03),
				{Symbol: "BBB", Observations: []Observation{
					{Date: "2024-01-01", Return: 0.01},
					{Date: "yesterday", Return: 0.02},
					{Date: "2024-01-03", Return: 0.03},
				}},
			},
			expected: ErrInvalidInput,
		},
		{
			name: "duplicate date",
			series: []AssetSeries{
				seriesFrom("AAA", 0, 0.01, 0.02, 0.03),
				{Symbol: "BBB", Observations: []Observation{
					{Date: "2024-01-01", Return: 0.01},
					{Date: "2024-01-01", Return: 0.02},
					{Date: "2024-01-03", Return: 0.03},
				}},
			},
			expected: ErrInvalidInput,
		},
		{
			name: "non-finite return",
			series: []AssetSeries{
				seriesFrom("AAA", 0, 0.01, 0.02, 0.03),
				seriesFrom("BBB", 0, 0.01, math.NaN(), 0.03),
			},
			expected: ErrInvalidInput,
		},
	}

	aligner := NewReturnSeriesAligner(zerolog.Nop())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rm, err := aligner.Align(tc.series)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expected)
			assert.Nil(t, rm)
		})
	}
}

func TestAlign_DoesNotMutateInput(t *testing.T) {
	aligner := NewReturnSeriesAligner(zerolog.Nop())

	b := AssetSeries{
		Symbol: "BBB",
		Observations: []Observation{
			{Date: "2024-01-03", Return: 0.3},
			{Date: "2024-01-01", Return: 0.1},
			{Date: "2024-01-02", Return: 0.2},
		},
	}
	before := append([]Observation(nil), b.Observations...)

	_, err := aligner.Align([]AssetSeries{seriesFrom("AAA", 0, 0.01, 0.02, 0.03), b})
	require.NoError(t, err)
	assert.Equal(t, before, b.Observations)
}
