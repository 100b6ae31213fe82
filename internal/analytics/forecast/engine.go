package forecast

import (
	"fmt"
	"math"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/stats"
)

// Engine produces forecasts for metric series. It holds no state besides its
// configuration and is safe for concurrent use.
type Engine struct {
	config Config
}

// NewEngine creates an engine after validating config
func NewEngine(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{config: config}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// ForecastMetric projects series daysAhead days past its last date using the
// configured method.
func (e *Engine) ForecastMetric(series analytics.MetricSeries, daysAhead int) (*ForecastResult, error) {
	return e.ForecastMetricWith(series, daysAhead, e.config.Method)
}

// ForecastMetricWith is ForecastMetric with an explicit method override.
func (e *Engine) ForecastMetricWith(series analytics.MetricSeries, daysAhead int, method Method) (*ForecastResult, error) {
	if daysAhead < 1 || daysAhead > e.config.MaxHorizon {
		return nil, fmt.Errorf("%w: days ahead must be in [1, %d], got %d",
			analytics.ErrInvalidParameters, e.config.MaxHorizon, daysAhead)
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	if series.Len() < e.config.MinHistory {
		return nil, &InsufficientDataError{Have: series.Len(), Need: e.config.MinHistory}
	}

	values := series.Values()
	if _, err := stats.ComputeStatistics(values); err != nil {
		return nil, err
	}

	choice, err := e.choose(values, method)
	if err != nil {
		return nil, err
	}

	fit, err := choice.forecaster.Fit(values)
	if err != nil {
		return nil, err
	}

	sd := residualStdDev(values, fit.Fitted)
	z := zForConfidence(e.config.Confidence)
	last := series.LastDate()

	points := make([]ForecastPoint, daysAhead)
	for k := 1; k <= daysAhead; k++ {
		predicted := fit.Predict(k)
		half := intervalHalfWidth(sd, z, k)
		if math.IsNaN(predicted) || math.IsInf(predicted, 0) || math.IsInf(half, 0) {
			return nil, fmt.Errorf("%w: non-finite forecast at step %d", analytics.ErrInvalidInput, k)
		}
		points[k-1] = ForecastPoint{
			Date:           last.AddDate(0, 0, k),
			PredictedValue: predicted,
			LowerBound:     predicted - half,
			UpperBound:     predicted + half,
		}
	}

	return &ForecastResult{
		Metric:         series.Metric,
		Method:         choice.forecaster.Name(),
		Methodology:    e.methodology(choice, fit, len(values)),
		Accuracy:       choice.accuracy,
		Points:         points,
		ResidualStdDev: sd,
		HistorySize:    len(values),
	}, nil
}

func (e *Engine) forecasterFor(method Method) Forecaster {
	if method == MethodHolt {
		return NewHoltForecaster(e.config.Alpha, e.config.Beta)
	}
	return NewLinearForecaster()
}

// holdoutSize returns how many trailing points the backtest withholds: the
// configured fraction rounded, at least one, leaving at least three to fit.
func (e *Engine) holdoutSize(n int) int {
	h := int(math.Round(float64(n) * e.config.HoldoutFraction))
	if h < 1 {
		h = 1
	}
	if n-h < 3 {
		h = n - 3
	}
	return h
}

// backtest fits f on all but the trailing holdout and scores its predictions
// for the withheld days.
func (e *Engine) backtest(f Forecaster, values []float64) (Accuracy, error) {
	h := e.holdoutSize(len(values))
	train, actual := values[:len(values)-h], values[len(values)-h:]

	fit, err := f.Fit(train)
	if err != nil {
		return Accuracy{}, err
	}

	predicted := make([]float64, h)
	for k := 1; k <= h; k++ {
		predicted[k-1] = fit.Predict(k)
	}

	acc := Accuracy{
		RMSE:        CalculateRMSE(actual, predicted),
		HoldoutDays: h,
	}
	if mape, ok := CalculateMAPE(actual, predicted); ok {
		acc.MAPE = &mape
	}
	return acc, nil
}

func (e *Engine) methodology(c choice, fit *Fit, n int) string {
	var text string
	switch c.forecaster.Name() {
	case MethodHolt:
		text = fmt.Sprintf("Holt linear exponential smoothing (alpha %.2f, beta %.2f) over %d days of history, "+
			"ending at level %.2f with a daily trend of %+.2f.",
			fit.Params["alpha"], fit.Params["beta"], n, fit.Params["level"], fit.Params["trend"])
	default:
		text = fmt.Sprintf("Least-squares linear trend over %d days of history, with a daily slope of %+.2f.",
			n, fit.Params["slope"])
	}

	if c.auto {
		text += fmt.Sprintf(" Selected automatically: backtest RMSE %.2f against %.2f for %s.",
			c.accuracy.RMSE, c.runnerUp.RMSE, c.runnerUpName)
	}

	text += fmt.Sprintf(" %.0f%% intervals widen with the square root of the horizon. Accuracy measured on the last %d days withheld from fitting.",
		e.config.Confidence*100, c.accuracy.HoldoutDays)
	return text
}
