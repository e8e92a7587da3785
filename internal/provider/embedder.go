package provider

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
)

// Embedder resolves the embedder registered by the active provider plugin.
// Each provider registers embedders differently: ollama keys by server
// address, openai auto-registers at Init, gemini resolves by model name.
// Returns nil when the embedder is unknown to the provider.
func Embedder(g *genkit.Genkit, providerName, embedderModel, ollamaHost string) ai.Embedder {
	switch providerName {
	case "ollama":
		return ollama.Embedder(g, ollamaHost)
	case "openai":
		return genkit.LookupEmbedder(g, api.NewName("openai", embedderModel))
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, embedderModel)
	}
}
