package marketdata

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
	"golang.org/x/time/rate"
)

// PriceSource provides daily closing prices.
type PriceSource interface {
	GetHistoricalPrices(ctx context.Context, symbol string, period Period) ([]Bar, error)
}

// YahooSource implements PriceSource using the go-yfinance library
type YahooSource struct {
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewYahooSource creates a Yahoo Finance price source allowing at most
// requestsPerSecond history calls per second.
func NewYahooSource(requestsPerSecond float64, log zerolog.Logger) *YahooSource {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &YahooSource{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		log:     log.With().Str("client", "yahoo-native").Logger(),
	}
}

// GetHistoricalPrices fetches adjusted daily closes for the period
func (s *YahooSource) GetHistoricalPrices(ctx context.Context, symbol string, period Period) ([]Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	params := models.HistoryParams{
		Period:     string(period),
		Interval:   "1d",
		AutoAdjust: true,
	}

	history, err := t.History(params)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical prices: %w", err)
	}

	bars := make([]Bar, 0, len(history))
	for _, bar := range history {
		bars = append(bars, Bar{
			Date:  bar.Date,
			Close: bar.Close,
		})
	}

	s.log.Debug().
		Str("symbol", symbol).
		Str("period", string(period)).
		Int("bars", len(bars)).
		Msg("Fetched price history")

	return bars, nil
}
