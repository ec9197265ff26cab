package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// RelayNotifier avisa siempre a los suscriptores locales y además reenvía
// el cambio por un notificador remoto (Redis) hacia las otras instancias.
type RelayNotifier struct {
	local  Notifier
	remote Notifier
	logger *zap.Logger
}

func NewRelayNotifier(local, remote Notifier, logger *zap.Logger) *RelayNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayNotifier{local: local, remote: remote, logger: logger}
}

// Publish notifica primero en el proceso; el error devuelto es el del relay
// remoto.
func (n *RelayNotifier) Publish(ctx context.Context) error {
	if err := n.local.Publish(ctx); err != nil {
		n.logger.Warn("local publish failed", zap.Error(err))
	}
	return n.remote.Publish(ctx)
}

// Listen une ambos feeds. El canal se cierra cuando los dos se cierran.
func (n *RelayNotifier) Listen(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	sources := []<-chan struct{}{n.local.Listen(ctx), n.remote.Listen(ctx)}

	var wg sync.WaitGroup
	wg.Add(len(sources))
	for _, src := range sources {
		go func(src <-chan struct{}) {
			defer wg.Done()
			for range src {
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
