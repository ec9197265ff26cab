package domain

const (
	AuthorUser  = "User"
	AuthorAgent = "Agent"
)

// Message representa un mensaje del chat. Los mensajes durables viven en el
// store; los transitorios solo existen en memoria del cliente que los creó.
type Message struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	Transient bool   `json:"transient,omitempty"`
}
