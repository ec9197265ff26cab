package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"agent-chat/internal/domain"
)

// StatusError describe una respuesta no exitosa del API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat api status %d: %s", e.StatusCode, e.Body)
}

// Client implementa el store de mensajes contra el API HTTP del servidor.
type Client struct {
	baseURL string
	client  *http.Client
	dialer  *websocket.Dialer
}

// NewClient construye un cliente apuntando a baseURL (p. ej. http://localhost:8080).
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		dialer:  websocket.DefaultDialer,
	}
}

func (c *Client) List(ctx context.Context) ([]domain.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/messages", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Messages == nil {
		out.Messages = []domain.Message{}
	}
	return out.Messages, nil
}

func (c *Client) Send(ctx context.Context, author, body string) error {
	payload, err := json.Marshal(map[string]string{"author": author, "body": body})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// Subscribe abre el websocket de mensajes. El canal recibe la lista completa
// tras cada cambio y se cierra cuando ctx termina o la conexión cae.
func (c *Client) Subscribe(ctx context.Context) (<-chan []domain.Message, error) {
	conn, _, err := c.dialer.DialContext(ctx, wsURL(c.baseURL)+"/messages/ws", nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	out := make(chan []domain.Message)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	go func() {
		defer close(out)
		defer close(done)

		for {
			var messages []domain.Message
			if err := conn.ReadJSON(&messages); err != nil {
				return
			}
			select {
			case out <- messages:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
