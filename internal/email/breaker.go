package email

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSender corta el envío tras fallos consecutivos del transporte.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerSender(next Sender, maxFailures int, openTimeout time.Duration, logger *zap.Logger) *BreakerSender {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	st := gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &BreakerSender{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(st),
	}
}

func (s *BreakerSender) Send(ctx context.Context, to, subject, body string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.Send(ctx, to, subject, body)
	})
	return err
}
