package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agent-chat/internal/domain"
)

var (
	ErrEmptyInput      = errors.New("chat: empty input")
	ErrReplyInProgress = errors.New("chat: reply in progress")
)

// Store es el contrato mínimo del backend que el cliente necesita.
type Store interface {
	List(ctx context.Context) ([]domain.Message, error)
	Send(ctx context.Context, author, body string) error
}

// ViewListener recibe la lista visible cada vez que cambia.
type ViewListener func(visible []domain.Message)

// Sleeper espera d o hasta que ctx termine.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client mantiene el estado de una conversación: el espejo de los mensajes
// durables, el placeholder transitorio y la bandera de respuesta en curso.
type Client struct {
	store    Store
	script   Script
	delay    time.Duration
	sleep    Sleeper
	newID    func() string
	onChange ViewListener
	logger   *zap.Logger

	// viewMu se toma antes que mu y serializa las entregas al listener.
	viewMu sync.Mutex

	mu        sync.Mutex
	durable   []domain.Message
	transient []domain.Message
	input     string
	replying  bool
	inFlight  bool
	lastKnown []domain.Message
}

type Option func(*Client)

func WithDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

func WithIDGenerator(fn func() string) Option {
	return func(c *Client) { c.newID = fn }
}

func WithViewListener(fn ViewListener) Option {
	return func(c *Client) { c.onChange = fn }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithScript(s Script) Option {
	return func(c *Client) { c.script = s }
}

func New(store Store, opts ...Option) *Client {
	c := &Client{
		store:  store,
		script: DefaultScript,
		delay:  time.Second,
		sleep:  sleepContext,
		newID:  func() string { return "local-" + uuid.NewString() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

func (c *Client) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

func (c *Client) Replying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replying
}

// Visible devuelve los mensajes durables seguidos de los transitorios.
func (c *Client) Visible() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return project(c.durable, c.transient)
}

func project(durable, transient []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(durable)+len(transient))
	out = append(out, durable...)
	for _, m := range transient {
		if m.Transient {
			out = append(out, m)
		}
	}
	return out
}

// ApplySnapshot reemplaza el espejo durable con la lista recibida por la
// suscripción.
func (c *Client) ApplySnapshot(messages []domain.Message) {
	c.update(func() bool {
		c.durable = append([]domain.Message(nil), messages...)
		if sameMessages(c.lastKnown, c.durable) {
			return false
		}
		c.lastKnown = c.durable
		return true
	})
}

// Refresh carga la lista durable directamente del store.
func (c *Client) Refresh(ctx context.Context) error {
	messages, err := c.store.List(ctx)
	if err != nil {
		return err
	}
	c.ApplySnapshot(messages)
	return nil
}

// Sync aplica cada lista recibida hasta que ctx termine o el canal se cierre.
func (c *Client) Sync(ctx context.Context, snapshots <-chan []domain.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msgs, ok := <-snapshots:
			if !ok {
				return
			}
			c.ApplySnapshot(msgs)
		}
	}
}

// Submit envía el texto pendiente y corre la respuesta escalonada del agente.
// Con input vacío o una respuesta en curso no hace nada y devuelve
// ErrEmptyInput o ErrReplyInProgress.
func (c *Client) Submit(ctx context.Context) error {
	c.mu.Lock()
	text := c.input
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return ErrEmptyInput
	}
	// inFlight cubre también el envío del mensaje del usuario, antes de que
	// replying se active.
	if c.replying || c.inFlight {
		c.mu.Unlock()
		return ErrReplyInProgress
	}
	c.input = ""
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.replying = false
		c.inFlight = false
		c.mu.Unlock()
	}()

	if err := c.store.Send(ctx, domain.AuthorUser, text); err != nil {
		return err
	}

	c.update(func() bool {
		c.replying = true
		c.transient = []domain.Message{{
			ID:        c.newID(),
			Author:    domain.AuthorAgent,
			Body:      c.script.Initial,
			Transient: true,
		}}
		return true
	})

	if err := c.runReply(ctx, text); err != nil {
		c.logger.Warn("staged reply failed", zap.Error(err))
		c.setTransient(nil)
		// El fallback se envía aunque ctx ya esté cancelado.
		if fbErr := c.store.Send(context.WithoutCancel(ctx), domain.AuthorAgent, c.script.Fallback); fbErr != nil {
			c.logger.Error("fallback reply failed", zap.Error(fbErr))
			return errors.Join(err, fbErr)
		}
	}
	return nil
}

func (c *Client) runReply(ctx context.Context, input string) error {
	seq := c.script.Sequence(input)
	for i, text := range seq {
		if err := c.sleep(ctx, c.delay); err != nil {
			return err
		}
		if i == len(seq)-1 {
			c.setTransient(nil)
			return c.store.Send(ctx, domain.AuthorAgent, text)
		}
		c.updateTransient(text)
	}
	return nil
}

func (c *Client) setTransient(msgs []domain.Message) {
	c.update(func() bool {
		c.transient = msgs
		return true
	})
}

func (c *Client) updateTransient(body string) {
	c.update(func() bool {
		if len(c.transient) == 0 {
			return false
		}
		next := c.transient[0]
		next.Body = body
		c.transient = []domain.Message{next}
		return true
	})
}

// update aplica mutate bajo mu y, si hubo cambio, entrega la vista nueva.
// Mientras el listener corre, viewMu impide que otro cambio se adelante, así
// las vistas llegan en el mismo orden en que se produjeron. El listener no
// debe llamar a Submit ni a ApplySnapshot.
func (c *Client) update(mutate func() bool) {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()

	c.mu.Lock()
	changed := mutate()
	view := project(c.durable, c.transient)
	c.mu.Unlock()

	if changed && c.onChange != nil {
		c.onChange(view)
	}
}

func sameMessages(a, b []domain.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
