package optimization

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

const dateLayout = "2006-01-02"

// ReturnSeriesAligner inner-joins per-asset return series on date.
type ReturnSeriesAligner struct {
	log zerolog.Logger
}

// NewReturnSeriesAligner creates a new aligner.
func NewReturnSeriesAligner(log zerolog.Logger) *ReturnSeriesAligner {
	return &ReturnSeriesAligner{
		log: log.With().Str("component", "aligner").Logger(),
	}
}

// Align builds the ReturnMatrix from the given series. Columns follow the
// input order; rows are the dates present in every usable series, ascending.
// Series with fewer than MinObservationsPerSet observations are skipped.
func (a *ReturnSeriesAligner) Align(series []AssetSeries) (*ReturnMatrix, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no asset series provided", ErrInsufficientData)
	}

	seen := make(map[string]bool, len(series))
	usable := make([]AssetSeries, 0, len(series))
	for _, s := range series {
		symbol := strings.TrimSpace(s.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("%w: asset series without a symbol", ErrInvalidInput)
		}
		if seen[symbol] {
			return nil, fmt.Errorf("%w: duplicate symbol %s", ErrInvalidInput, symbol)
		}
		seen[symbol] = true

		if len(s.Observations) < MinObservationsPerSet {
			a.log.Warn().
				Str("symbol", symbol).
				Int("observations", len(s.Observations)).
				Msg("Skipping series with too few observations")
			continue
		}
		usable = append(usable, s)
	}

	if len(usable) < MinAssets {
		return nil, fmt.Errorf("%w: need at least %d assets with more than %d observations, got %d",
			ErrInsufficientData, MinAssets, MinObservationsPerSet-1, len(usable))
	}

	// Index every series by calendar date
	indexed := make([]map[string]float64, len(usable))
	dayOf := make(map[string]time.Time)
	for i, s := range usable {
		byDate := make(map[string]float64, len(s.Observations))
		for _, o := range s.Observations {
			day, err := parseDate(o.Date)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, s.Symbol, err)
			}
			if math.IsNaN(o.Return) || math.IsInf(o.Return, 0) {
				return nil, fmt.Errorf("%w: %s: non-finite return on %s", ErrInvalidInput, s.Symbol, o.Date)
			}
			key := day.Format(dateLayout)
			if _, dup := byDate[key]; dup {
				return nil, fmt.Errorf("%w: %s: duplicate date %s", ErrInvalidInput, s.Symbol, key)
			}
			byDate[key] = o.Return
			dayOf[key] = day
		}
		indexed[i] = byDate
	}

	// Inner join: keep dates present for every asset
	common := make([]string, 0, len(indexed[0]))
	for key := range indexed[0] {
		inAll := true
		for _, other := range indexed[1:] {
			if _, ok := other[key]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, key)
		}
	}

	if len(common) == 0 {
		return nil, fmt.Errorf("%w: the %d series share no dates", ErrNoOverlap, len(usable))
	}

	// ISO dates sort lexicographically
	sort.Strings(common)

	if len(common) < MinAlignedRows {
		return nil, fmt.Errorf("%w: only %d aligned observations (need at least %d)",
			ErrInsufficientData, len(common), MinAlignedRows)
	}

	rows, cols := len(common), len(usable)
	data := mat.NewDense(rows, cols, nil)
	dates := make([]time.Time, rows)
	for r, key := range common {
		dates[r] = dayOf[key]
		for c := range usable {
			data.Set(r, c, indexed[c][key])
		}
	}

	symbols := make([]string, cols)
	for c, s := range usable {
		symbols[c] = strings.TrimSpace(s.Symbol)
	}

	a.log.Debug().
		Int("assets", cols).
		Int("aligned_rows", rows).
		Str("first_date", common[0]).
		Str("last_date", common[rows-1]).
		Msg("Aligned return matrix")

	return &ReturnMatrix{
		Dates:   dates,
		Symbols: symbols,
		Data:    data,
	}, nil
}

// parseDate accepts plain ISO dates and RFC 3339 timestamps and returns the
// calendar day at UTC midnight.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		t, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q", value)
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
