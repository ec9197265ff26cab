package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"agent-chat/internal/domain"
)

var (
	messagesAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_appended_total",
			Help: "Messages appended to the store, by author kind (User, Agent, other).",
		},
		[]string{"author"},
	)
	activeSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_subscribers",
			Help: "Live message list subscriptions.",
		},
	)
)

func init() {
	prometheus.MustRegister(messagesAppended)
	prometheus.MustRegister(activeSubscribers)
}

// authorLabel acota el label a valores conocidos; el autor llega del cliente
// y puede ser cualquier cadena.
func authorLabel(author string) string {
	switch author {
	case domain.AuthorUser, domain.AuthorAgent:
		return author
	default:
		return "other"
	}
}
