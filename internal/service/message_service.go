package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agent-chat/internal/domain"
	"agent-chat/internal/repository"
)

// MessageService expone el store de mensajes: listar, agregar y suscribirse
// a la lista completa.
type MessageService struct {
	repo     repository.MessageRepository
	notifier Notifier
	logger   *zap.Logger
}

var ErrMessageServiceNotConfigured = errors.New("message service not configured")

func NewMessageService(repo repository.MessageRepository, notifier Notifier, logger *zap.Logger) *MessageService {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{repo: repo, notifier: notifier, logger: logger}
}

func (s *MessageService) List(ctx context.Context) ([]domain.Message, error) {
	if s == nil || s.repo == nil {
		return nil, ErrMessageServiceNotConfigured
	}
	return s.repo.List(ctx)
}

// Append guarda un mensaje nuevo. Autor y cuerpo vacíos se aceptan tal cual.
func (s *MessageService) Append(ctx context.Context, author, body string) error {
	if s == nil || s.repo == nil {
		return ErrMessageServiceNotConfigured
	}

	msg := domain.Message{
		ID:     uuid.NewString(),
		Author: author,
		Body:   body,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return err
	}
	messagesAppended.WithLabelValues(authorLabel(author)).Inc()

	// El mensaje ya quedó guardado; un fallo al notificar solo se registra.
	if err := s.notifier.Publish(ctx); err != nil {
		s.logger.Warn("publish message change failed", zap.Error(err), zap.String("message_id", msg.ID))
	}
	return nil
}

// Subscribe emite la lista actual y luego una lista nueva tras cada cambio.
// Un suscriptor lento solo recibe la lista más reciente. El canal se cierra
// cuando ctx termina.
func (s *MessageService) Subscribe(ctx context.Context) (<-chan []domain.Message, error) {
	if s == nil || s.repo == nil {
		return nil, ErrMessageServiceNotConfigured
	}

	ctx, cancel := context.WithCancel(ctx)
	ticks := s.notifier.Listen(ctx)

	initial, err := s.repo.List(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan []domain.Message, 1)
	out <- initial
	activeSubscribers.Inc()

	go func() {
		defer activeSubscribers.Dec()
		defer close(out)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				messages, err := s.repo.List(ctx)
				if err != nil {
					s.logger.Warn("refresh subscription failed", zap.Error(err))
					continue
				}
				replaceLatest(out, messages)
			}
		}
	}()
	return out, nil
}

// replaceLatest deja en out solo la lista más reciente. Requiere un único
// escritor sobre out.
func replaceLatest(out chan []domain.Message, messages []domain.Message) {
	select {
	case out <- messages:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- messages
}
