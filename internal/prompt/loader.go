package prompt

import (
	"context"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog/log"
)

// Library holds the static texts injected into every provider call.
// Missing files degrade to empty content with a warning, never a crash.
type Library struct {
	Persona       string
	KnowledgeBase string
}

// Load reads the persona prompt and knowledge base from disk.
func Load(ctx context.Context, personaPath, knowledgePath string) *Library {
	loader := newFileLoader(ctx)
	return &Library{
		Persona:       loadText(ctx, loader, personaPath),
		KnowledgeBase: loadText(ctx, loader, knowledgePath),
	}
}

// SystemPrompt composes the provider-facing system text.
func (l *Library) SystemPrompt() string {
	return l.Persona + "\n\nKNOWLEDGE BASE:\n" + l.KnowledgeBase
}

func newFileLoader(ctx context.Context) *file.FileLoader {
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		log.Warn().Err(err).Msg("prompt parser unavailable")
		return nil
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		log.Warn().Err(err).Msg("prompt loader unavailable")
		return nil
	}
	return loader
}

func loadText(ctx context.Context, loader *file.FileLoader, path string) string {
	if loader == nil || path == "" {
		return ""
	}
	docs, err := loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("prompt file not loaded, using empty content")
		return ""
	}
	var builder strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(content)
	}
	return builder.String()
}
