package optimization

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runRecord struct {
	operation string
	outcome   string
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []runRecord
}

func (r *fakeRecorder) ObserveRun(operation, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, runRecord{operation, outcome})
}

func basket() []AssetSeries {
	return []AssetSeries{
		randomSeries("AAPL", 1, 120, 0.0009, 0.018),
		randomSeries("MSFT", 2, 120, 0.0007, 0.015),
		randomSeries("KO", 3, 120, 0.0003, 0.009),
	}
}

func TestService_Optimize(t *testing.T) {
	recorder := &fakeRecorder{}
	service := NewService(99, recorder, zerolog.Nop())

	result, err := service.Optimize(basket(), 0.0001)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{"AAPL", "MSFT", "KO"}, result.Symbols)
	assert.Len(t, result.Weights, 3)
	if result.Success {
		assert.InDelta(t, 1.0, weightSum(result.Weights), WeightSumTolerance)
		for _, w := range result.Weights {
			assert.GreaterOrEqual(t, w, 0.0)
		}
		assert.GreaterOrEqual(t, result.Metrics.Volatility, 0.0)
	} else {
		assert.Contains(t, result.Message, "Optimization failed")
		assert.Equal(t, 0.0, weightSum(result.Weights))
	}

	require.Len(t, recorder.runs, 1)
	assert.Equal(t, "optimize", recorder.runs[0].operation)
}

func TestService_OptimizeIsIdempotent(t *testing.T) {
	service := NewService(99, nil, zerolog.Nop())
	series := basket()

	first, err := service.Optimize(series, 0.0001)
	require.NoError(t, err)
	second, err := service.Optimize(series, 0.0001)
	require.NoError(t, err)

	assert.Equal(t, first.Success, second.Success)
	for symbol, w := range first.Weights {
		assert.InDelta(t, w, second.Weights[symbol], 1e-9)
	}
	assert.InDelta(t, first.Metrics.ExpectedReturn, second.Metrics.ExpectedReturn, 1e-12)
	assert.InDelta(t, first.Metrics.Volatility, second.Metrics.Volatility, 1e-12)
}

func TestService_EfficientFrontier(t *testing.T) {
	service := NewService(5, nil, zerolog.Nop())

	result, err := service.EfficientFrontier(basket(), 100)
	require.NoError(t, err)
	assert.Len(t, result.Returns, 100)
	for _, v := range result.Volatilities {
		assert.LessOrEqual(t, result.MinVolPortfolio.Volatility, v)
	}
}

func TestService_Analyze(t *testing.T) {
	recorder := &fakeRecorder{}
	service := NewService(5, recorder, zerolog.Nop())

	analysis, err := service.Analyze(basket(), DefaultRiskFreeRate/252, 50)
	require.NoError(t, err)

	assert.Equal(t, 120, analysis.Rows)
	assert.Equal(t, []string{"AAPL", "MSFT", "KO"}, analysis.Symbols)
	assert.NotNil(t, analysis.Optimal)
	assert.Len(t, analysis.Frontier.Points, 50)

	require.Len(t, recorder.runs, 1)
	assert.Equal(t, "analyze", recorder.runs[0].operation)
}

func TestService_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		call     func(s *Service) error
		expected error
		outcome  string
	}{
		{
			name: "frontier with zero samples",
			call: func(s *Service) error {
				_, err := s.EfficientFrontier(basket(), 0)
				return err
			},
			expected: ErrFrontierConfiguration,
			outcome:  OutcomeRejected,
		},
		{
			name: "single asset",
			call: func(s *Service) error {
				_, err := s.Optimize(basket()[:1], 0)
				return err
			},
			expected: ErrInsufficientData,
			outcome:  OutcomeRejected,
		},
		{
			name: "disjoint dates",
			call: func(s *Service) error {
				_, err := s.Optimize([]AssetSeries{
					seriesFrom("A", 0, 0.01, 0.02, 0.03),
					seriesFrom("B", 30, 0.01, 0.02, 0.03),
				}, 0)
				return err
			},
			expected: ErrNoOverlap,
			outcome:  OutcomeRejected,
		},
		{
			name: "identical constant series",
			call: func(s *Service) error {
				_, err := s.Analyze([]AssetSeries{
					seriesFrom("A", 0, 0.01, 0.01, 0.01, 0.01),
					seriesFrom("B", 0, 0.01, 0.01, 0.01, 0.01),
				}, 0, 10)
				return err
			},
			expected: ErrDegenerateCovariance,
			outcome:  OutcomeRejected,
		},
		{
			name: "invalid risk-free rate",
			call: func(s *Service) error {
				_, err := s.Optimize(basket(), math.Inf(1))
				return err
			},
			expected: ErrInvalidInput,
			outcome:  OutcomeRejected,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := &fakeRecorder{}
			service := NewService(1, recorder, zerolog.Nop())

			err := tc.call(service)
			assert.ErrorIs(t, err, tc.expected)
			require.Len(t, recorder.runs, 1)
			assert.Equal(t, tc.outcome, recorder.runs[0].outcome)
		})
	}
}

func TestService_RecoversPanics(t *testing.T) {
	recorder := &fakeRecorder{}
	service := NewService(1, recorder, zerolog.Nop())

	err := func() (err error) {
		defer service.finish("optimize", time.Now(), &err, func() string { return OutcomeSuccess })
		panic("matrix dimension mismatch")
	}()

	assert.ErrorIs(t, err, ErrInternal)
	require.Len(t, recorder.runs, 1)
	assert.Equal(t, OutcomeError, recorder.runs[0].outcome)
}
