// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/marketdata"
	"github.com/aristath/frontier/internal/modules/optimization"
)

const genericErrorMessage = "An unexpected error occurred. Please try again."

// errBadRequest marks request problems detected by the handler itself
var errBadRequest = errors.New("bad request")

// DataFetcher loads return series for symbols
type DataFetcher interface {
	Fetch(ctx context.Context, symbols []string, period marketdata.Period) (*marketdata.Dataset, error)
}

// Analyzer runs the optimizer
type Analyzer interface {
	Analyze(series []optimization.AssetSeries, riskFreeRate float64, sampleCount int) (*optimization.Analysis, error)
}

// Defaults are used when a request omits optional fields
type Defaults struct {
	RiskFreeRate float64
	SampleCount  int
}

// Handler handles optimization HTTP requests
type Handler struct {
	analyzer Analyzer
	fetcher  DataFetcher
	defaults Defaults
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(analyzer Analyzer, fetcher DataFetcher, defaults Defaults, log zerolog.Logger) *Handler {
	if defaults.SampleCount <= 0 {
		defaults.SampleCount = optimization.DefaultSampleCount
	}

	validate := validator.New()
	// Report JSON field names in validation errors
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		analyzer: analyzer,
		fetcher:  fetcher,
		defaults: defaults,
		validate: validate,
		log:      log.With().Str("handler", "optimization").Logger(),
	}
}

// HandleOptimize handles POST /api/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	symbols := marketdata.NormalizeSymbols(req.Symbols)
	if len(symbols) == 0 {
		h.writeError(w, marketdata.ErrNoSymbols)
		return
	}

	period, err := parsePeriod(req.TimePeriod)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dataset, err := h.fetcher.Fetch(r.Context(), symbols, period)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Only series with more than two returns can be aligned
	usable := make([]optimization.AssetSeries, 0, len(dataset.Series))
	for _, s := range dataset.Series {
		if len(s.Observations) > 2 {
			usable = append(usable, s)
		}
	}
	if len(usable) < optimization.MinAssets {
		h.writeError(w, fmt.Errorf("%w: Not enough valid stock data found. Please check your symbols and try again.", errBadRequest))
		return
	}

	h.analyze(w, usable, h.rate(req.RiskFreeRate), h.samples(req.SampleCount), &dataset.Metadata)
}

// HandleOptimizeReturns handles POST /api/optimize/returns
func (h *Handler) HandleOptimizeReturns(w http.ResponseWriter, r *http.Request) {
	var req OptimizeReturnsRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	series, err := req.toSeries()
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.analyze(w, series, h.rate(req.RiskFreeRate), h.samples(req.SampleCount), nil)
}

// HandleStockData handles POST /api/stock-data
func (h *Handler) HandleStockData(w http.ResponseWriter, r *http.Request) {
	var req StockDataRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	symbols := marketdata.NormalizeSymbols(req.Symbols)
	if len(symbols) == 0 {
		h.writeError(w, marketdata.ErrNoSymbols)
		return
	}

	period, err := parsePeriod(req.TimePeriod)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dataset, err := h.fetcher.Fetch(r.Context(), symbols, period)
	if err != nil {
		h.writeError(w, err)
		return
	}

	data := make(map[string]StockDataEntry, len(dataset.Series))
	for _, s := range dataset.Series {
		data[s.Symbol] = StockDataEntry{
			Returns:    s.Returns(),
			Dates:      s.Dates(),
			MeanReturn: s.MeanReturn,
			Volatility: s.AnnualizedVolatility,
			LastPrice:  s.LastPrice,
		}
	}

	h.writeJSON(w, http.StatusOK, StockDataResponse{
		Status:   "success",
		Data:     data,
		Metadata: dataset.Metadata,
	})
}

func (h *Handler) analyze(w http.ResponseWriter, series []optimization.AssetSeries, riskFreeRate float64, samples int, metadata *marketdata.Metadata) {
	runID := uuid.NewString()

	analysis, err := h.analyzer.Analyze(series, riskFreeRate, samples)
	if err != nil {
		h.log.Warn().Err(err).Str("run_id", runID).Msg("Optimization request failed")
		h.writeError(w, err)
		return
	}

	if !analysis.Optimal.Success {
		h.log.Warn().
			Str("run_id", runID).
			Str("message", analysis.Optimal.Message).
			Msg("Solver did not converge")
	}

	h.writeJSON(w, http.StatusOK, OptimizeResponse{
		Status:            "success",
		RunID:             runID,
		OptimalPortfolio:  analysis.Optimal,
		EfficientFrontier: analysis.Frontier,
		Metadata:          metadata,
	})
}

func (h *Handler) decode(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("%w: No data provided", errBadRequest)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: Request must be valid JSON: %v", errBadRequest, err)
	}

	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: invalid field %s (%s)", errBadRequest, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (h *Handler) rate(r *Rate) float64 {
	if r == nil {
		return h.defaults.RiskFreeRate
	}
	return float64(*r)
}

func (h *Handler) samples(n *int) int {
	if n == nil {
		return h.defaults.SampleCount
	}
	return *n
}

func parsePeriod(raw string) (marketdata.Period, error) {
	if strings.TrimSpace(raw) == "" {
		return marketdata.DefaultPeriod, nil
	}
	return marketdata.ParsePeriod(raw)
}

// isClientError reports whether err should be answered with 400
func isClientError(err error) bool {
	return errors.Is(err, errBadRequest) ||
		optimization.IsRequestError(err) ||
		marketdata.IsRequestError(err)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if isClientError(err) {
		message := err.Error()
		if errors.Is(err, errBadRequest) {
			message = strings.TrimPrefix(message, errBadRequest.Error()+": ")
		}
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Status: "error", Message: message})
		return
	}

	h.log.Error().Err(err).Msg("Unexpected error while handling request")
	h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Status: "error", Message: genericErrorMessage})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
