package router

import (
	"github.com/pario-ai/promptlab/pkg/config"
)

// Router resolves model aliases to model ids.
type Router struct {
	aliases      map[string]string
	defaultModel string
}

// New creates a Router from the given configuration.
func New(cfg *config.Config) *Router {
	aliases := make(map[string]string, len(cfg.Router.Aliases))
	for _, a := range cfg.Router.Aliases {
		aliases[a.Name] = a.Model
	}
	return &Router{aliases: aliases, defaultModel: cfg.Generation.Model}
}

// Resolve returns the model id for name. An empty name resolves to the
// default model; names without an alias pass through unchanged.
func (r *Router) Resolve(name string) string {
	if name == "" {
		return r.defaultModel
	}
	if model, ok := r.aliases[name]; ok {
		return model
	}
	return name
}
