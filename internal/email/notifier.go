package email

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultDispatchTimeout = 30 * time.Second

// Notifier despacha correos en segundo plano; los fallos solo se registran.
type Notifier struct {
	sender  Sender
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotifier(sender Sender, logger *zap.Logger, timeout time.Duration) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Notifier{
		sender:  sender,
		logger:  logger,
		timeout: timeout,
	}
}

// Dispatch no bloquea al llamador ni depende de su contexto.
func (n *Notifier) Dispatch(to, subject, body string) {
	if n == nil || n.sender == nil {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.sender.Send(ctx, to, subject, body); err != nil {
			n.logger.Warn("send email failed", zap.Error(err), zap.String("to", to), zap.String("subject", subject))
		}
	}()
}

// Wait espera a que terminen los envíos en curso.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
