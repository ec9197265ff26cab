package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"agent-chat/internal/domain"
)

// fakeStore guarda los mensajes y refleja cada envío en el cliente, como
// lo haría la suscripción.
type fakeStore struct {
	mu       sync.Mutex
	messages []domain.Message
	client   *Client
	calls    int
	failOn   map[int]error
}

func (s *fakeStore) List(_ context.Context) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...), nil
}

func (s *fakeStore) Send(_ context.Context, author, body string) error {
	s.mu.Lock()
	s.calls++
	if err := s.failOn[s.calls]; err != nil {
		s.mu.Unlock()
		return err
	}
	s.messages = append(s.messages, domain.Message{
		ID:     fmt.Sprintf("m%d", len(s.messages)+1),
		Author: author,
		Body:   body,
	})
	snapshot := append([]domain.Message(nil), s.messages...)
	client := s.client
	s.mu.Unlock()

	if client != nil {
		client.ApplySnapshot(snapshot)
	}
	return nil
}

func (s *fakeStore) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

func newTestClient(store *fakeStore, sleeper Sleeper, opts ...Option) *Client {
	if sleeper == nil {
		sleeper = func(context.Context, time.Duration) error { return nil }
	}
	opts = append([]Option{WithSleeper(sleeper), WithLogger(zap.NewNop())}, opts...)
	c := New(store, opts...)
	store.client = c
	return c
}

func transientEntries(view []domain.Message) []domain.Message {
	var out []domain.Message
	for _, m := range view {
		if m.Transient {
			out = append(out, m)
		}
	}
	return out
}

func TestSubmit_HelloScenario(t *testing.T) {
	store := &fakeStore{}
	var (
		client *Client
		ticks  [][]domain.Message
	)
	sleeper := func(_ context.Context, d time.Duration) error {
		if d != time.Second {
			t.Fatalf("expected 1s delay, got %v", d)
		}
		ticks = append(ticks, transientEntries(client.Visible()))
		return nil
	}
	client = newTestClient(store, sleeper)

	client.SetInput("hello")
	if err := client.Submit(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	msgs := store.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 durable messages, got %d", len(msgs))
	}
	if msgs[0].Author != "User" || msgs[0].Body != "hello" {
		t.Fatalf("unexpected user message %+v", msgs[0])
	}
	if msgs[1].Author != "Agent" || msgs[1].Body != "「hello」について回答いたします。..." {
		t.Fatalf("unexpected agent message %+v", msgs[1])
	}

	wantBodies := append([]string{DefaultScript.Initial}, DefaultScript.Steps...)
	if len(ticks) != len(wantBodies) {
		t.Fatalf("expected %d ticks, got %d", len(wantBodies), len(ticks))
	}
	var placeholderID string
	for i, tick := range ticks {
		if len(tick) != 1 {
			t.Fatalf("tick %d: expected exactly one transient entry, got %d", i, len(tick))
		}
		if tick[0].Body != wantBodies[i] {
			t.Fatalf("tick %d: expected body %q, got %q", i, wantBodies[i], tick[0].Body)
		}
		if placeholderID == "" {
			placeholderID = tick[0].ID
		} else if tick[0].ID != placeholderID {
			t.Fatalf("tick %d: placeholder id changed", i)
		}
	}

	if got := transientEntries(client.Visible()); len(got) != 0 {
		t.Fatalf("expected no transient entries after reply, got %+v", got)
	}
	if client.Replying() {
		t.Fatalf("expected replying reset")
	}
	if client.Input() != "" {
		t.Fatalf("expected input cleared")
	}
}

func TestSubmit_NoOptimisticUserEcho(t *testing.T) {
	store := &fakeStore{}
	var client *Client
	sawUser := false
	sleeper := func(context.Context, time.Duration) error {
		for _, m := range client.Visible() {
			if m.Author == domain.AuthorUser && !m.Transient {
				sawUser = true
			}
		}
		return nil
	}
	client = newTestClient(store, sleeper)
	client.SetInput("hola")
	_ = client.Submit(context.Background())

	if !sawUser {
		t.Fatalf("expected user message to come from the store snapshot")
	}
}

func TestSubmit_DurableCountIsTwicePerSubmission(t *testing.T) {
	store := &fakeStore{}
	client := newTestClient(store, nil)

	const n = 4
	for i := 0; i < n; i++ {
		client.SetInput(fmt.Sprintf("pregunta %d", i))
		if err := client.Submit(context.Background()); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if got := len(store.Messages()); got != 2*n {
		t.Fatalf("expected %d messages, got %d", 2*n, got)
	}
}

func TestSubmit_WhitespaceIsNoop(t *testing.T) {
	store := &fakeStore{}
	client := newTestClient(store, nil)

	for _, input := range []string{"", "   ", "\n\t"} {
		client.SetInput(input)
		if err := client.Submit(context.Background()); !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("input %q: expected ErrEmptyInput, got %v", input, err)
		}
	}
	if store.calls != 0 {
		t.Fatalf("expected no store writes, got %d", store.calls)
	}
	if client.Replying() {
		t.Fatalf("expected not replying")
	}
}

func TestSubmit_WhileReplyingIsDropped(t *testing.T) {
	store := &fakeStore{}
	var client *Client
	checked := false
	sleeper := func(ctx context.Context, _ time.Duration) error {
		if checked {
			return nil
		}
		checked = true
		if !client.Replying() {
			t.Fatalf("expected replying during staged reply")
		}
		before := client.Visible()
		calls := store.calls

		client.SetInput("otra pregunta")
		if err := client.Submit(ctx); !errors.Is(err, ErrReplyInProgress) {
			t.Fatalf("expected ErrReplyInProgress, got %v", err)
		}
		if store.calls != calls {
			t.Fatalf("expected no store write while replying")
		}
		after := client.Visible()
		if len(before) != len(after) || before[len(before)-1] != after[len(after)-1] {
			t.Fatalf("expected transient state unchanged")
		}
		return nil
	}
	client = newTestClient(store, sleeper)

	client.SetInput("primera")
	if err := client.Submit(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := len(store.Messages()); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
	if client.Input() != "otra pregunta" {
		t.Fatalf("expected dropped submission to leave its input, got %q", client.Input())
	}
}

func TestSubmit_FinalAppendFailureFallsBack(t *testing.T) {
	// Envío 1: usuario; envío 2: respuesta final (falla); envío 3: fallback.
	store := &fakeStore{failOn: map[int]error{2: errors.New("write failed")}}
	client := newTestClient(store, nil)

	client.SetInput("hello")
	if err := client.Submit(context.Background()); err != nil {
		t.Fatalf("expected handled failure, got %v", err)
	}

	msgs := store.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user + fallback, got %+v", msgs)
	}
	if msgs[1].Author != domain.AuthorAgent || msgs[1].Body != DefaultScript.Fallback {
		t.Fatalf("expected fallback agent message, got %+v", msgs[1])
	}
	if got := transientEntries(client.Visible()); len(got) != 0 {
		t.Fatalf("expected transient cleared, got %+v", got)
	}
	if client.Replying() {
		t.Fatalf("expected replying reset")
	}
}

func TestSubmit_UserAppendFailureAborts(t *testing.T) {
	sendErr := errors.New("store unavailable")
	store := &fakeStore{failOn: map[int]error{1: sendErr}}
	slept := false
	client := newTestClient(store, func(context.Context, time.Duration) error {
		slept = true
		return nil
	})

	client.SetInput("hello")
	if err := client.Submit(context.Background()); !errors.Is(err, sendErr) {
		t.Fatalf("expected send error, got %v", err)
	}
	if slept || store.calls != 1 {
		t.Fatalf("expected no agent turn after user append failure")
	}
	if len(client.Visible()) != 0 || client.Replying() {
		t.Fatalf("expected clean state after abort")
	}
}

func TestSubmit_FallbackFailureIsReturned(t *testing.T) {
	finalErr := errors.New("final failed")
	fallbackErr := errors.New("fallback failed")
	store := &fakeStore{failOn: map[int]error{2: finalErr, 3: fallbackErr}}
	client := newTestClient(store, nil)

	client.SetInput("hello")
	err := client.Submit(context.Background())
	if !errors.Is(err, finalErr) || !errors.Is(err, fallbackErr) {
		t.Fatalf("expected both errors joined, got %v", err)
	}
	if client.Replying() {
		t.Fatalf("expected replying reset")
	}
	if got := transientEntries(client.Visible()); len(got) != 0 {
		t.Fatalf("expected transient cleared")
	}
}

func TestSubmit_CancelDuringReplyFallsBack(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(store, func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	client.SetInput("hello")
	if err := client.Submit(ctx); err != nil {
		t.Fatalf("expected handled failure, got %v", err)
	}
	msgs := store.Messages()
	if len(msgs) != 2 || msgs[1].Body != DefaultScript.Fallback {
		t.Fatalf("expected fallback after cancel, got %+v", msgs)
	}
}

func TestSubmit_UsesCustomIDAndScript(t *testing.T) {
	store := &fakeStore{}
	var client *Client
	var seen []string
	script := Script{Initial: "...", Steps: []string{"a"}, Final: "echo:%s", Fallback: "x"}
	client = newTestClient(store, func(context.Context, time.Duration) error {
		for _, m := range transientEntries(client.Visible()) {
			seen = append(seen, m.ID)
		}
		return nil
	}, WithScript(script), WithIDGenerator(func() string { return "local-1" }), WithDelay(10*time.Millisecond))

	client.SetInput("hi")
	if err := client.Submit(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(seen) != 2 || seen[0] != "local-1" || seen[1] != "local-1" {
		t.Fatalf("expected placeholder id local-1 on each tick, got %v", seen)
	}
	if msgs := store.Messages(); msgs[1].Body != "echo:hi" {
		t.Fatalf("expected templated final, got %q", msgs[1].Body)
	}
}

func TestApplySnapshot_NotifiesOnlyOnChange(t *testing.T) {
	var views [][]domain.Message
	client := New(&fakeStore{}, WithViewListener(func(v []domain.Message) {
		views = append(views, v)
	}))

	snap := []domain.Message{{ID: "m1", Author: "User", Body: "hola"}}
	client.ApplySnapshot(snap)
	client.ApplySnapshot(snap)
	if len(views) != 1 {
		t.Fatalf("expected one notification for identical snapshots, got %d", len(views))
	}

	client.ApplySnapshot(append(snap, domain.Message{ID: "m2", Author: "Agent", Body: "ok"}))
	if len(views) != 2 || len(views[1]) != 2 {
		t.Fatalf("expected notification with 2 messages, got %+v", views)
	}
}

func TestApplySnapshot_CopiesInput(t *testing.T) {
	client := New(&fakeStore{})
	snap := []domain.Message{{ID: "m1", Body: "a"}}
	client.ApplySnapshot(snap)
	snap[0].Body = "mutated"

	if got := client.Visible()[0].Body; got != "a" {
		t.Fatalf("expected durable mirror isolated from caller, got %q", got)
	}
}

func TestViewListener_FiresOnTransientUpdates(t *testing.T) {
	store := &fakeStore{}
	count := 0
	client := newTestClient(store, nil, WithViewListener(func([]domain.Message) { count++ }))

	client.SetInput("hello")
	_ = client.Submit(context.Background())

	// usuario + placeholder + pasos + limpieza + respuesta final
	want := 1 + 1 + len(DefaultScript.Steps) + 1 + 1
	if count != want {
		t.Fatalf("expected %d view notifications, got %d", want, count)
	}
}

func TestProject_OrderAndFilter(t *testing.T) {
	durable := []domain.Message{{ID: "a"}, {ID: "b"}}
	transient := []domain.Message{{ID: "t1", Transient: true}, {ID: "stale"}}

	out := project(durable, transient)
	if len(out) != 3 || out[0].ID != "a" || out[1].ID != "b" || out[2].ID != "t1" {
		t.Fatalf("unexpected projection %+v", out)
	}

	out[0].ID = "changed"
	if durable[0].ID != "a" {
		t.Fatalf("projection must not alias durable list")
	}
}

func TestSync_AppliesUntilClosed(t *testing.T) {
	client := New(&fakeStore{})
	ch := make(chan []domain.Message, 2)
	ch <- []domain.Message{{ID: "m1"}}
	ch <- []domain.Message{{ID: "m1"}, {ID: "m2"}}
	close(ch)

	client.Sync(context.Background(), ch)
	if got := len(client.Visible()); got != 2 {
		t.Fatalf("expected latest snapshot applied, got %d messages", got)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScriptSequence(t *testing.T) {
	seq := DefaultScript.Sequence("hello")
	if len(seq) != len(DefaultScript.Steps)+1 {
		t.Fatalf("unexpected sequence length %d", len(seq))
	}
	if seq[len(seq)-1] != "「hello」について回答いたします。..." {
		t.Fatalf("unexpected final %q", seq[len(seq)-1])
	}
	if len(DefaultScript.Steps) > 0 && &seq[0] == &DefaultScript.Steps[0] {
		t.Fatalf("sequence must not alias script steps")
	}
}

func TestRefresh_LoadsHistory(t *testing.T) {
	store := &fakeStore{messages: []domain.Message{{ID: "m1", Author: "User", Body: "antes"}}}
	client := New(store)

	if err := client.Refresh(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := client.Visible(); len(got) != 1 || got[0].Body != "antes" {
		t.Fatalf("unexpected visible list %+v", got)
	}
}

func TestViewListener_SerializedAndInOrder(t *testing.T) {
	store := &fakeStore{}
	var (
		active  int32
		overlap bool
		mu      sync.Mutex
		last    []domain.Message
	)
	client := New(store,
		WithSleeper(func(context.Context, time.Duration) error { return nil }),
		WithViewListener(func(v []domain.Message) {
			mu.Lock()
			active++
			if active > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			last = v
			active--
			mu.Unlock()
		}),
	)
	store.client = client

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			client.SetInput(fmt.Sprintf("pregunta %d", i))
			_ = client.Submit(context.Background())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			client.ApplySnapshot(store.Messages())
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if overlap {
		t.Fatalf("expected listener calls to never overlap")
	}
	want := client.Visible()
	if len(last) != len(want) {
		t.Fatalf("expected last delivered view to match current state: got %d messages, want %d", len(last), len(want))
	}
	for i := range want {
		if last[i] != want[i] {
			t.Fatalf("position %d: delivered %+v, current %+v", i, last[i], want[i])
		}
	}
}
