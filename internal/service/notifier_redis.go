package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const messagesChangedChannel = "chat:messages:changed"

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// redisSubscription es el subconjunto de *redis.PubSub que usa Listen.
type redisSubscription interface {
	Receive(ctx context.Context) (interface{}, error)
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// RedisNotifier propaga los cambios entre varias instancias del API que
// comparten la misma base de datos.
type RedisNotifier struct {
	publisher redisPublisher
	subscribe func(ctx context.Context, channel string) redisSubscription
	channel   string
	logger    *zap.Logger
}

func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{
		publisher: client,
		subscribe: func(ctx context.Context, channel string) redisSubscription {
			return client.Subscribe(ctx, channel)
		},
		channel: messagesChangedChannel,
		logger:  logger,
	}
}

func (n *RedisNotifier) Publish(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return n.publisher.Publish(ctx, n.channel, "changed").Err()
}

// Listen no retorna hasta que Redis confirma la suscripción, de modo que
// ningún cambio publicado después se pierde. Si la suscripción falla el
// canal devuelto ya está cerrado.
func (n *RedisNotifier) Listen(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	pubsub := n.subscribe(ctx, n.channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		n.logger.Warn("redis subscribe failed", zap.Error(err), zap.String("channel", n.channel))
		pubsub.Close()
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					n.logger.Warn("redis subscription closed", zap.String("channel", n.channel))
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
