package service

import (
	"context"
	"sync"
)

// Notifier difunde el evento "la lista de mensajes cambió".
type Notifier interface {
	Publish(ctx context.Context) error
	Listen(ctx context.Context) <-chan struct{}
}

// LocalNotifier reparte los eventos dentro del proceso. Cada listener tiene
// buffer 1, por lo que ráfagas de cambios se colapsan en un solo tick.
type LocalNotifier struct {
	mu        sync.Mutex
	listeners map[chan struct{}]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{
		listeners: make(map[chan struct{}]struct{}),
	}
}

func (n *LocalNotifier) Publish(_ context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *LocalNotifier) Listen(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.listeners, ch)
		close(ch)
		n.mu.Unlock()
	}()
	return ch
}
