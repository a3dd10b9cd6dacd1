package algopay

import (
	"time"

	"github.com/vitwit/algopay/logger"
	"github.com/vitwit/algopay/metrics"
)

type Option func(*AlgoPay)

func WithLogger(l logger.Logger) Option {
	return func(a *AlgoPay) {
		a.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(a *AlgoPay) {
		a.metrics = r
	}
}

func WithTimeout(t time.Duration) Option {
	return func(a *AlgoPay) {
		a.timeout = t
	}
}
