package generate

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/pario-ai/promptlab/pkg/models"
)

// Gemini implements Generator with the Gemini API.
type Gemini struct {
	client *genai.Client
}

var _ Generator = (*Gemini)(nil)

// NewGemini creates a Gemini client for the given API key.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// Generate sends req to the model and converts the reply.
func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	var config *genai.GenerateContentConfig
	if req.SystemInstruction != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, req.Model, buildContents(req), config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	resp := &Response{Text: result.Text(), Model: req.Model}
	if result.ModelVersion != "" {
		resp.Model = result.ModelVersion
	}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = models.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CachedTokens:     int(u.CachedContentTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return resp, nil
}

// buildContents lays out cached parts, then history, then the new user turn.
func buildContents(req Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+2)
	if len(req.Parts) > 0 {
		parts := make([]*genai.Part, 0, len(req.Parts))
		for _, p := range req.Parts {
			parts = append(parts, toPart(p))
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}
	for _, m := range req.History {
		var role genai.Role = genai.RoleUser
		if m.Role == models.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return append(contents, genai.NewContentFromText(req.Text, genai.RoleUser))
}

func toPart(p models.PayloadRef) *genai.Part {
	if p.URI != "" {
		return genai.NewPartFromURI(p.URI, p.MIMEType)
	}
	return genai.NewPartFromBytes(p.Data, p.MIMEType)
}
