// Package marketdata fetches daily price history and turns it into the
// return series consumed by the optimizer.
package marketdata

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// Requirements for a symbol to be usable
const (
	MinBars            = 30
	MinReturns         = 30
	TradingDaysPerYear = 252
	DefaultConcurrency = 4
	DefaultPeriod      = Period1Y
	metadataDateLayout = "2006-01-02"
)

var (
	// ErrInvalidPeriod is returned for periods other than one or five years
	ErrInvalidPeriod = errors.New("invalid time period")
	// ErrNoSymbols is returned when no symbol survives normalization
	ErrNoSymbols = errors.New("no stock symbols provided")
	// ErrNoData is returned when none of the symbols produced usable data
	ErrNoData = errors.New("no valid data found for any of the provided symbols")
)

// IsRequestError reports whether err is caused by the request itself.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrNoSymbols) ||
		errors.Is(err, ErrNoData)
}

// Bar is one daily price bar.
type Bar struct {
	Date  time.Time
	Close float64
}

// Period is a history length supported by the fetcher.
type Period string

const (
	Period1Y Period = "1y"
	Period5Y Period = "5y"
)

// ParsePeriod accepts "1y", "1 year", "5y" and "5 years" in any case.
func ParsePeriod(raw string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1y", "1 year":
		return Period1Y, nil
	case "5y", "5 years":
		return Period5Y, nil
	default:
		return "", fmt.Errorf("%w: %q (use 1 Year or 5 Years)", ErrInvalidPeriod, raw)
	}
}

// Days returns the calendar length of the period.
func (p Period) Days() int {
	if p == Period5Y {
		return 5 * 365
	}
	return 365
}

// Metadata describes the window a dataset covers.
type Metadata struct {
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Symbols   []string `json:"symbols"`
}

// Dataset is the output of a fetch: usable series in request order.
type Dataset struct {
	Series   []optimization.AssetSeries `json:"series"`
	Metadata Metadata                   `json:"metadata"`
}

// NormalizeSymbols splits comma-separated input, trims, upper-cases and
// removes empty and duplicate entries while keeping first-seen order.
func NormalizeSymbols(raw ...string) []string {
	seen := make(map[string]bool)
	symbols := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			symbol := strings.ToUpper(strings.TrimSpace(part))
			if symbol == "" || seen[symbol] {
				continue
			}
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}
