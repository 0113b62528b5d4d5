package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider selects which LLM backend the classifier talks to.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq" // OpenAI-compatible endpoint
	ProviderGemini Provider = "gemini"
	ProviderOllama Provider = "ollama"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// Intent is the structured classification the model returns for one
// utterance. Optional fields stay zero/nil when the model omits them.
type Intent struct {
	QueryType   string   `json:"query_type"`
	Action      string   `json:"action,omitempty"`
	ProductName string   `json:"product_name,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Quantity    int      `json:"quantity,omitempty"`
	Category    string   `json:"category,omitempty"`
	Weight      string   `json:"weight,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	MinPrice    *float64 `json:"min_price,omitempty"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// Kind normalizes the model's query_type; anything unrecognized collapses
// to UNKNOWN.
func (i Intent) Kind() QueryType {
	k := QueryType(strings.ToUpper(strings.TrimSpace(i.QueryType)))
	if !k.valid() {
		return QueryUnknown
	}
	return k
}

// ClassifierOptions configures the LLM connection.
type ClassifierOptions struct {
	Provider    Provider `json:"provider"`
	APIKey      string   `json:"api_key"`
	BaseURL     string   `json:"base_url,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
}

// Classifier asks an LLM to classify shopping utterances into Intents.
type Classifier struct {
	llm         llms.Model
	temperature float64
}

// NewClassifier creates a classifier for the configured provider.
func NewClassifier(ctx context.Context, opts ClassifierOptions) (*Classifier, error) {
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}

	var (
		model llms.Model
		err   error
	)

	switch opts.Provider {
	case ProviderOpenAI, ProviderGroq:
		baseURL := opts.BaseURL
		if baseURL == "" && opts.Provider == ProviderGroq {
			baseURL = groqBaseURL
		}
		oo := []openai.Option{
			openai.WithToken(opts.APIKey),
			openai.WithModel(opts.Model),
		}
		if baseURL != "" {
			oo = append(oo, openai.WithBaseURL(baseURL))
		}
		model, err = openai.New(oo...)
	case ProviderGemini:
		model, err = googleai.New(ctx, googleai.WithAPIKey(opts.APIKey))
	case ProviderOllama:
		model, err = ollama.New(ollama.WithModel(opts.Model))
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", opts.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model: %w", opts.Provider, err)
	}

	return &Classifier{llm: model, temperature: opts.Temperature}, nil
}

// Classify runs the intent prompt with catalog context and parses the
// model's JSON answer. The raw output goes through extraction and repair
// before validation; a model that cannot be parsed yields an error, never a
// panic or a half-filled Intent.
func (c *Classifier) Classify(ctx context.Context, message string, categories, sampleProducts []string) (Intent, error) {
	prompt := buildIntentPrompt(message, categories, sampleProducts)

	raw, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(1024),
		llms.WithJSONMode(),
	)
	if err != nil {
		return Intent{}, fmt.Errorf("intent generation failed: %w", err)
	}

	obj, err := extractJSONObject(raw)
	if err != nil {
		log.Warn().Str("raw", truncate(raw, 200)).Msg("intent output had no parsable JSON")
		return Intent{}, err
	}

	var intent Intent
	if err := json.Unmarshal([]byte(obj), &intent); err != nil {
		return Intent{}, fmt.Errorf("intent JSON did not match schema: %w", err)
	}
	return intent, nil
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSONObject locates the JSON object in free-form model output and
// repairs it if the model produced almost-JSON.
func extractJSONObject(raw string) (string, error) {
	m := jsonObjectRe.FindString(raw)
	if m == "" {
		return "", fmt.Errorf("no JSON object in model output")
	}

	var probe interface{}
	if json.Unmarshal([]byte(m), &probe) == nil {
		return m, nil
	}

	repaired, err := jsonrepair.JSONRepair(m)
	if err != nil {
		return "", fmt.Errorf("JSON repair failed: %w", err)
	}
	return repaired, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// buildIntentPrompt mirrors the production intent prompt: catalog context,
// a strict field list, and worked examples for the ambiguous kinds.
func buildIntentPrompt(message string, categories, sampleProducts []string) string {
	if len(categories) > 20 {
		categories = categories[:20]
	}
	if len(sampleProducts) > 15 {
		sampleProducts = sampleProducts[:15]
	}

	var b strings.Builder
	b.WriteString("You are a supermarket shopping assistant. Available categories: ")
	b.WriteString(strings.Join(categories, ", "))
	b.WriteString("\nSample products: ")
	b.WriteString(strings.Join(sampleProducts, ", "))
	b.WriteString("\n\nUser Message: ")
	b.WriteString(message)
	b.WriteString(`

Return a JSON object with strictly these fields:
- query_type: MUST be one of ["PRICE_QUERY", "CART_ADD", "CATEGORY_FILTER", "PRODUCT_SEARCH", "PRICE_FILTER", "CHECKOUT", "UNKNOWN"] (UPPERCASE)
- action: string
- product_name: string or null
- brand: string or null
- quantity: number or null
- category: string or null
- weight: string or null
- min_price: number or null (minimum price threshold the user wants)
- max_price: number or null (maximum price threshold the user wants)
- confidence: number

IMPORTANT RULES for query_type selection:
- Use PRODUCT_SEARCH when the user wants to see/show/browse a specific product type across all brands. Examples: "show me rice", "I want to see milk", "what toothpaste do you have"
- Use PRICE_FILTER when the user asks to see products above/below/between a certain price. Examples: "show products above 150", "items under 200"
- Use PRICE_QUERY when the user asks for the price of one specific product (e.g. "what is the price of Amul butter")
- Use CART_ADD when the user explicitly wants to add to cart
- Use CATEGORY_FILTER when the user mentions a broad category like "beauty", "dairy", "grocery"

Examples:
{"query_type": "PRICE_QUERY", "action": "check_price", "product_name": "Tomato", "brand": null, "quantity": null, "category": null, "weight": null, "min_price": null, "max_price": null, "confidence": 0.9}
{"query_type": "PRODUCT_SEARCH", "action": "search_product", "product_name": "rice", "brand": null, "quantity": null, "category": null, "weight": null, "min_price": null, "max_price": null, "confidence": 0.95}
{"query_type": "PRICE_FILTER", "action": "filter_by_price", "product_name": null, "brand": null, "quantity": null, "category": null, "weight": null, "min_price": 150, "max_price": null, "confidence": 0.95}
{"query_type": "CART_ADD", "action": "add_to_cart", "product_name": "tomato", "brand": null, "quantity": 5, "category": null, "weight": null, "min_price": null, "max_price": null, "confidence": 0.95}
`)
	return b.String()
}
