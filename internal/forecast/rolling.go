package forecast

import "context"

const DefaultRollingWindow = 7

// RollingMean predicts each observed point as the mean of the trailing
// window (at least one point). It never extrapolates.
type RollingMean struct {
	Window int
}

func NewRollingMean(window int) *RollingMean {
	if window <= 0 {
		window = DefaultRollingWindow
	}
	return &RollingMean{Window: window}
}

func (r *RollingMean) Name() string {
	return "rolling_mean"
}

func (r *RollingMean) Forecast(ctx context.Context, series []Observation, _ int) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	window := r.Window
	if window <= 0 {
		window = DefaultRollingWindow
	}

	out := make([]Prediction, len(series))
	var sum float64
	for i, o := range series {
		sum += o.Value
		if i >= window {
			sum -= series[i-window].Value
		}
		size := i + 1
		if size > window {
			size = window
		}
		out[i] = Prediction{Date: o.Date, Value: sum / float64(size)}
	}
	return out, nil
}
