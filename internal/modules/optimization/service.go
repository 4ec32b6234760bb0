package optimization

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Recorder receives one observation per Service call.
type Recorder interface {
	ObserveRun(operation, outcome string, duration time.Duration)
}

// Run outcomes reported to the Recorder
const (
	OutcomeSuccess      = "success"
	OutcomeNotConverged = "not_converged"
	OutcomeRejected     = "rejected"
	OutcomeError        = "error"
)

// Service is the entry point to the optimizer. It holds configuration only;
// every call aligns, estimates and solves from scratch, so one Service can
// be shared by concurrent requests.
type Service struct {
	aligner  *ReturnSeriesAligner
	risk     *RiskModelBuilder
	sharpe   *SharpeOptimizer
	frontier *FrontierSampler
	recorder Recorder
	log      zerolog.Logger
}

// NewService creates the optimizer service. frontierSeed zero means a
// time-based seed per call. recorder may be nil.
func NewService(frontierSeed uint64, recorder Recorder, log zerolog.Logger) *Service {
	return &Service{
		aligner:  NewReturnSeriesAligner(log),
		risk:     NewRiskModelBuilder(log),
		sharpe:   NewSharpeOptimizer(log),
		frontier: NewFrontierSampler(frontierSeed, log),
		recorder: recorder,
		log:      log.With().Str("service", "optimization").Logger(),
	}
}

// Optimize returns the Sharpe-maximizing long-only portfolio for the series.
func (s *Service) Optimize(series []AssetSeries, riskFreeRate float64) (result *OptimizationResult, err error) {
	start := time.Now()
	defer s.finish("optimize", start, &err, func() string { return resultOutcome(result) })

	if err := validateRiskFreeRate(riskFreeRate); err != nil {
		return nil, err
	}
	model, err := s.buildModel(series)
	if err != nil {
		return nil, err
	}
	return s.sharpe.Optimize(model, riskFreeRate), nil
}

// EfficientFrontier samples sampleCount random portfolios for the series.
func (s *Service) EfficientFrontier(series []AssetSeries, sampleCount int) (result *FrontierResult, err error) {
	start := time.Now()
	defer s.finish("efficient_frontier", start, &err, func() string { return OutcomeSuccess })

	// Checked before alignment so a bad count is reported as such
	if sampleCount <= 0 {
		return nil, fmt.Errorf("%w: sample count must be positive, got %d", ErrFrontierConfiguration, sampleCount)
	}
	model, err := s.buildModel(series)
	if err != nil {
		return nil, err
	}
	return s.frontier.Sample(model, sampleCount)
}

// Analyze aligns and estimates once, then runs both the solver and the
// frontier sampler.
func (s *Service) Analyze(series []AssetSeries, riskFreeRate float64, sampleCount int) (analysis *Analysis, err error) {
	start := time.Now()
	defer s.finish("analyze", start, &err, func() string {
		if analysis == nil {
			return OutcomeSuccess
		}
		return resultOutcome(analysis.Optimal)
	})

	if err := validateRiskFreeRate(riskFreeRate); err != nil {
		return nil, err
	}
	if sampleCount <= 0 {
		return nil, fmt.Errorf("%w: sample count must be positive, got %d", ErrFrontierConfiguration, sampleCount)
	}

	aligned, err := s.aligner.Align(series)
	if err != nil {
		return nil, err
	}
	model, err := s.risk.Build(aligned)
	if err != nil {
		return nil, err
	}

	optimal := s.sharpe.Optimize(model, riskFreeRate)
	frontier, err := s.frontier.Sample(model, sampleCount)
	if err != nil {
		return nil, err
	}

	rows, _ := aligned.Dims()
	s.log.Info().
		Strs("symbols", model.Symbols).
		Int("observations", rows).
		Bool("converged", optimal.Success).
		Float64("sharpe", optimal.Metrics.SharpeRatio).
		Int("samples", len(frontier.Points)).
		Msg("Portfolio analysis complete")

	return &Analysis{
		Optimal:  optimal,
		Frontier: frontier,
		Symbols:  model.Symbols,
		Rows:     rows,
	}, nil
}

func (s *Service) buildModel(series []AssetSeries) (*RiskModel, error) {
	aligned, err := s.aligner.Align(series)
	if err != nil {
		return nil, err
	}
	return s.risk.Build(aligned)
}

// finish converts a panic into ErrInternal and reports the call.
func (s *Service) finish(operation string, start time.Time, errp *error, outcome func() string) {
	if r := recover(); r != nil {
		s.log.Error().
			Str("operation", operation).
			Interface("panic", r).
			Msg("Recovered from panic in optimizer")
		*errp = fmt.Errorf("%w: %v", ErrInternal, r)
	}

	var label string
	switch {
	case *errp == nil:
		label = outcome()
	case errors.Is(*errp, ErrInternal):
		label = OutcomeError
	case IsRequestError(*errp):
		label = OutcomeRejected
	default:
		label = OutcomeError
	}

	if *errp != nil {
		s.log.Debug().Err(*errp).Str("operation", operation).Msg("Optimizer request failed")
	}
	if s.recorder != nil {
		s.recorder.ObserveRun(operation, label, time.Since(start))
	}
}

func resultOutcome(result *OptimizationResult) string {
	if result != nil && !result.Success {
		return OutcomeNotConverged
	}
	return OutcomeSuccess
}

func validateRiskFreeRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: risk-free rate must be finite", ErrInvalidInput)
	}
	return nil
}
