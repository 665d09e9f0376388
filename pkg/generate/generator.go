// Package generate sends assembled prompts and cached content to a model.
package generate

import (
	"context"

	"github.com/pario-ai/promptlab/pkg/models"
)

// Request is a single generation call as seen by a backend.
type Request struct {
	Model             string
	SystemInstruction string
	// Parts is cached content sent ahead of the conversation.
	Parts   []models.PayloadRef
	History []models.ChatMessage
	Text    string
}

// Response is the model's reply.
type Response struct {
	Text  string
	Model string
	Usage models.Usage
}

// Generator produces a model reply for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
