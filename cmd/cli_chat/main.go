package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"agent-chat/internal/chat"
	"agent-chat/internal/chatapi"
	"agent-chat/internal/config"
	"agent-chat/internal/domain"
)

// Cantidad de mensajes visibles en pantalla.
const viewportSize = 12

var (
	userColor      = color.New(color.FgGreen, color.Bold).SprintFunc()
	agentColor     = color.New(color.FgCyan, color.Bold).SprintFunc()
	transientColor = color.New(color.FgHiBlack, color.Italic).SprintFunc()
	noticeColor    = color.New(color.FgYellow).SprintFunc()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	api := chatapi.NewClient(cfg.ChatServerURL, nil)
	snapshots, err := api.Subscribe(ctx)
	if err != nil {
		log.Fatalf("suscripción: %v", err)
	}

	view := &screen{}
	client := chat.New(api,
		chat.WithDelay(cfg.ReplyStepDelay),
		chat.WithLogger(logger),
		chat.WithViewListener(view.render),
	)

	if err := client.Refresh(ctx); err != nil {
		logger.Warn("initial history load failed", zap.Error(err))
	}

	go func() {
		client.Sync(ctx, snapshots)
		stop()
	}()

	fmt.Println(userColor("Chat demo"), "conectado a", agentColor(cfg.ChatServerURL))
	fmt.Println("Escribe un mensaje y presiona Enter. 'exit' para salir.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || strings.EqualFold(strings.TrimSpace(line), "exit") {
				stop()
				return
			}
			client.SetInput(line)
			wg.Add(1)
			go func() {
				defer wg.Done()
				submit(ctx, client, view)
			}()
		}
	}
}

func submit(ctx context.Context, client *chat.Client, s *screen) {
	err := client.Submit(ctx)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrEmptyInput):
	case errors.Is(err, chat.ErrReplyInProgress):
		s.notice("el agente está respondiendo; mensaje descartado")
	default:
		s.notice(fmt.Sprintf("error: %v", err))
	}
}

type screen struct {
	mu sync.Mutex
}

// render redibuja los últimos mensajes, de modo que el más reciente quede
// siempre a la vista.
func (s *screen) render(visible []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if len(visible) > viewportSize {
		start = len(visible) - viewportSize
	}

	var b strings.Builder
	b.WriteString("\033[H\033[2J")
	for _, m := range visible[start:] {
		b.WriteString(formatMessage(m))
		b.WriteByte('\n')
	}
	b.WriteString("> ")
	fmt.Print(b.String())
}

func (s *screen) notice(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Println()
	fmt.Println(noticeColor(text))
	fmt.Print("> ")
}

func formatMessage(m domain.Message) string {
	switch {
	case m.Transient:
		return transientColor(m.Author + ": " + m.Body)
	case m.Author == domain.AuthorUser:
		return userColor(m.Author+":") + " " + m.Body
	default:
		return agentColor(m.Author+":") + " " + m.Body
	}
}
