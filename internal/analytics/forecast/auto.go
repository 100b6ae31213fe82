package forecast

// choice is the method picked for a series along with its backtest.
type choice struct {
	forecaster Forecaster
	accuracy   Accuracy

	// Populated when the method was selected automatically
	auto         bool
	runnerUp     Accuracy
	runnerUpName Method
}

// choose resolves method for values. A fixed method is backtested on its own;
// auto backtests linear and holt and keeps the lower RMSE, preferring linear
// on ties.
func (e *Engine) choose(values []float64, method Method) (choice, error) {
	if method != MethodAuto {
		f := e.forecasterFor(method)
		acc, err := e.backtest(f, values)
		if err != nil {
			return choice{}, err
		}
		return choice{forecaster: f, accuracy: acc}, nil
	}

	linear := e.forecasterFor(MethodLinear)
	linearAcc, err := e.backtest(linear, values)
	if err != nil {
		return choice{}, err
	}

	holt := e.forecasterFor(MethodHolt)
	holtAcc, err := e.backtest(holt, values)
	if err != nil {
		return choice{}, err
	}

	if holtAcc.RMSE < linearAcc.RMSE {
		return choice{
			forecaster:   holt,
			accuracy:     holtAcc,
			auto:         true,
			runnerUp:     linearAcc,
			runnerUpName: MethodLinear,
		}, nil
	}
	return choice{
		forecaster:   linear,
		accuracy:     linearAcc,
		auto:         true,
		runnerUp:     holtAcc,
		runnerUpName: MethodHolt,
	}, nil
}
