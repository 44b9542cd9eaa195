package ai

import (
	"context"
	"fmt"
	"strings"
)

// Dispatcher resolves prefixed model slugs ("gemini/gemini-2.5-flash",
// "routeway/glm-4.5-air:free") to one of the registered upstream providers.
// The same slugs are used by the router policy table and the answering
// fallback chain.
type Dispatcher struct {
	providers map[string]IProvider
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{providers: make(map[string]IProvider)}
}

func (d *Dispatcher) Add(prefix string, p IProvider) {
	key := strings.ToLower(strings.TrimSpace(prefix))
	if key == "" || p == nil {
		return
	}
	d.providers[key] = p
}

func (d *Dispatcher) Name() string {
	return "dispatch"
}

func (d *Dispatcher) resolve(slug string) (IProvider, string, error) {
	prefix, model, ok := strings.Cut(slug, "/")
	if !ok || model == "" {
		return nil, "", fmt.Errorf("model slug must be prefix/model, got %q", slug)
	}
	p := d.providers[strings.ToLower(prefix)]
	if p == nil {
		return nil, "", fmt.Errorf("no provider configured for prefix %q: %w", prefix, ErrUnavailable)
	}
	return p, model, nil
}

func (d *Dispatcher) Generate(ctx context.Context, slug string, prompt string) (string, error) {
	p, model, err := d.resolve(slug)
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, model, prompt)
}

func (d *Dispatcher) Embed(ctx context.Context, slug string, text string, taskType string) ([]float32, error) {
	p, model, err := d.resolve(slug)
	if err != nil {
		return nil, err
	}
	return p.Embed(ctx, model, text, taskType)
}
