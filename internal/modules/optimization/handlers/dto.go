package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/frontier/internal/modules/marketdata"
	"github.com/aristath/frontier/internal/modules/optimization"
)

// OptimizeRequest is the body of POST /api/optimize
type OptimizeRequest struct {
	Symbols      string `json:"symbols" validate:"required"`
	TimePeriod   string `json:"time_period"`
	RiskFreeRate *Rate  `json:"risk_free_rate" validate:"omitempty"`
	SampleCount  *int   `json:"sample_count" validate:"omitempty,min=1,max=10000"`
}

// StockDataRequest is the body of POST /api/stock-data
type StockDataRequest struct {
	Symbols    string `json:"symbols" validate:"required"`
	TimePeriod string `json:"time_period"`
}

// ReturnsAsset is one caller-supplied return series
type ReturnsAsset struct {
	Symbol  string    `json:"symbol" validate:"required"`
	Dates   []string  `json:"dates" validate:"required,min=1"`
	Returns []float64 `json:"returns" validate:"required,min=1"`
}

// OptimizeReturnsRequest is the body of POST /api/optimize/returns
type OptimizeReturnsRequest struct {
	Assets       []ReturnsAsset `json:"assets" validate:"required,min=1,dive"`
	RiskFreeRate *Rate          `json:"risk_free_rate" validate:"omitempty"`
	SampleCount  *int           `json:"sample_count" validate:"omitempty,min=1,max=10000"`
}

// toSeries converts the request into optimizer input
func (r OptimizeReturnsRequest) toSeries() ([]optimization.AssetSeries, error) {
	series := make([]optimization.AssetSeries, 0, len(r.Assets))
	for _, a := range r.Assets {
		if len(a.Dates) != len(a.Returns) {
			return nil, fmt.Errorf("%w: %s has %d dates but %d returns",
				optimization.ErrInvalidInput, a.Symbol, len(a.Dates), len(a.Returns))
		}
		obs := make([]optimization.Observation, len(a.Dates))
		for i := range a.Dates {
			obs[i] = optimization.Observation{Date: a.Dates[i], Return: a.Returns[i]}
		}
		series = append(series, optimization.AssetSeries{
			Symbol:       strings.ToUpper(strings.TrimSpace(a.Symbol)),
			Observations: obs,
		})
	}
	return series, nil
}

// Rate accepts a JSON number or a numeric string ("0.02").
type Rate float64

// UnmarshalJSON implements json.Unmarshaler
func (r *Rate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid risk-free rate %q", s)
		}
		*r = Rate(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid risk-free rate")
	}
	*r = Rate(v)
	return nil
}

// OptimizeResponse is returned by both optimize endpoints
type OptimizeResponse struct {
	Status            string                           `json:"status"`
	RunID             string                           `json:"run_id"`
	OptimalPortfolio  *optimization.OptimizationResult `json:"optimal_portfolio"`
	EfficientFrontier *optimization.FrontierResult     `json:"efficient_frontier"`
	Metadata          *marketdata.Metadata             `json:"metadata,omitempty"`
}

// StockDataEntry is one symbol in the stock-data response
type StockDataEntry struct {
	Returns    []float64 `json:"returns"`
	Dates      []string  `json:"dates"`
	MeanReturn float64   `json:"mean_return"`
	Volatility float64   `json:"volatility"`
	LastPrice  float64   `json:"last_price"`
}

// StockDataResponse is returned by POST /api/stock-data
type StockDataResponse struct {
	Status   string                    `json:"status"`
	Data     map[string]StockDataEntry `json:"data"`
	Metadata marketdata.Metadata       `json:"metadata"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
