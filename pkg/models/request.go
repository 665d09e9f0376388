package models

// Chat roles understood by the generation backend.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatMessage represents a single turn in a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
