package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/gridcast/gridcast/internal/models"
)

// Prompt is the system and user message pair sent to the completion service.
type Prompt struct {
	System string
	User   string
	// SampleSize is the number of records embedded in User.
	SampleSize int
}

// Builder renders prompt templates. Templates are parsed once by NewBuilder.
type Builder struct {
	templates map[models.ForecastKind]*template.Template
}

type promptData struct {
	Records string
	Count   int
	Context map[string]string
}

// NewBuilder parses the template of every spec in the registry.
func NewBuilder(registry *Registry) (*Builder, error) {
	b := &Builder{templates: make(map[models.ForecastKind]*template.Template)}

	for _, spec := range registry.Specs() {
		tmpl, err := template.New(string(spec.Kind)).Option("missingkey=error").Parse(spec.Template)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template for %s: %w", spec.Kind, err)
		}
		b.templates[spec.Kind] = tmpl
	}

	return b, nil
}

// Build renders the prompt for req. The record list is bounded to the spec's
// sample cap and embedded as compact JSON; the request is not modified.
func (b *Builder) Build(spec models.PromptSpec, req models.ForecastRequest) (Prompt, error) {
	tmpl, ok := b.templates[spec.Kind]
	if !ok {
		return Prompt{}, fmt.Errorf("no template registered for kind %q", spec.Kind)
	}

	data := promptData{Context: req.Context}
	if data.Context == nil {
		data.Context = map[string]string{}
	}

	if spec.UsesRecords() {
		sample := Bound(req.Records, spec.SampleCap)
		encoded, err := json.Marshal(sample)
		if err != nil {
			return Prompt{}, fmt.Errorf("failed to encode records: %w", err)
		}
		data.Records = string(encoded)
		data.Count = len(sample)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return Prompt{}, fmt.Errorf("failed to render %s prompt: %w", spec.Kind, err)
	}

	return Prompt{
		System:     spec.SystemPrompt,
		User:       sb.String(),
		SampleSize: data.Count,
	}, nil
}
