// Package llm implements the out-of-scope generative client collaborator:
// given a query, an assembled context string, and the reference list the
// Hybrid Retrieval Engine built, produce an answer. A FallbackClient is
// always available so a query never fails outright when the managed
// model is unreachable.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

// FallbackSource marks a response produced without a reachable model.
const FallbackSource = "fallback"

// Reference is one context snippet the answer is grounded on, carried
// through unchanged from the Hybrid Retrieval Engine's retrieved docs.
type Reference struct {
	ArticleID string `json:"article_id"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
}

// Response is the generative client's contract return shape: spec.md §6's
// `(text, references, confidence, model_id, timestamp)`.
type Response struct {
	Text       string      `json:"text"`
	References []Reference `json:"references"`
	Confidence float64     `json:"confidence"`
	ModelID    string      `json:"model_id"`
	Source     string      `json:"source"` // "managed" | "fallback"
	Timestamp  time.Time   `json:"timestamp"`
}

// Client is the capability set the Query API depends on: produce an
// answer from a query, an assembled context string, and the reference
// list the retrieval engine resolved the context from.
type Client interface {
	Generate(ctx context.Context, query, contextString string, references []Reference) (*Response, error)
	ModelID() string
}

// GenError classifies why a Generate call failed.
type GenError struct {
	Kind string // "provider_unavailable" | "cancelled"
	Err  error
}

func (e *GenError) Error() string { return e.Kind + ": " + e.Err.Error() }
func (e *GenError) Unwrap() error { return e.Err }

const (
	KindProviderUnavailable = "provider_unavailable"
	KindCancelled           = "cancelled"
)

// ManagedClient wraps google.golang.org/genai's text generation endpoint,
// grounded on the same client-construction pattern as
// internal/embedder.ManagedEmbedder.
type ManagedClient struct {
	client *genai.Client
	model  string
}

// NewManagedClient resolves an API key (explicit, then GEMINI_API_KEY) and
// opens a genai client.
func NewManagedClient(ctx context.Context, apiKey, model string) (*ManagedClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, &GenError{Kind: KindProviderUnavailable, Err: fmt.Errorf("no LLM API key configured")}
	}
	if model == "" {
		model = "gemini-flash-lite-latest"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &GenError{Kind: KindProviderUnavailable, Err: fmt.Errorf("create genai client: %w", err)}
	}
	return &ManagedClient{client: client, model: model}, nil
}

func (c *ManagedClient) ModelID() string { return c.model }

// Generate builds a single grounded-QA prompt from query and contextString
// and asks the model for a prose answer. Confidence is a coarse heuristic:
// 0.9 when the context is non-empty, 0.3 when the model had to answer with
// no retrieved context at all.
func (c *ManagedClient) Generate(ctx context.Context, query, contextString string, references []Reference) (*Response, error) {
	prompt := buildPrompt(query, contextString)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}, nil)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, &GenError{Kind: KindCancelled, Err: ctx.Err()}
		default:
			return nil, &GenError{Kind: KindProviderUnavailable, Err: err}
		}
	}
	text := extractText(resp)
	confidence := 0.3
	if strings.TrimSpace(contextString) != "" {
		confidence = 0.9
	}
	return &Response{
		Text:       text,
		References: references,
		Confidence: confidence,
		ModelID:    c.model,
		Source:     "managed",
		Timestamp:  time.Now().UTC(),
	}, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

func buildPrompt(query, contextString string) string {
	if strings.TrimSpace(contextString) == "" {
		return fmt.Sprintf("Answer the question as best you can. No supporting articles were retrieved.\n\nQuestion: %s", query)
	}
	return fmt.Sprintf(
		"Answer the question using only the supporting articles below. Cite article titles where relevant.\n\nSupporting articles:\n%s\n\nQuestion: %s",
		contextString, query,
	)
}

// FallbackClient always succeeds, returning a templated response clearly
// marked source = "fallback" per spec.md §6. Used when the managed client
// is unavailable or fails.
type FallbackClient struct{}

// NewFallbackClient builds the always-available fallback client.
func NewFallbackClient() *FallbackClient { return &FallbackClient{} }

func (f *FallbackClient) ModelID() string { return FallbackSource }

func (f *FallbackClient) Generate(ctx context.Context, query, contextString string, references []Reference) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, &GenError{Kind: KindCancelled, Err: ctx.Err()}
	default:
	}
	text := fmt.Sprintf("I could not reach the generative model. Based on %d retrieved article(s), you may want to review them directly for: %q", len(references), query)
	if len(references) == 0 {
		text = fmt.Sprintf("I could not reach the generative model and found no supporting articles for: %q", query)
	}
	return &Response{
		Text:       text,
		References: references,
		Confidence: 0.0,
		ModelID:    FallbackSource,
		Source:     FallbackSource,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// WithFallback wraps Primary so that any Generate failure (provider
// unavailable, non-cancellation error) falls through to Fallback instead
// of propagating, matching spec.md §6's "fallback templated response...
// when the client is unavailable" clause. Context cancellation is never
// masked by the fallback.
type WithFallback struct {
	Primary  Client
	Fallback Client
}

// NewWithFallback pairs a managed client with the always-available
// fallback.
func NewWithFallback(primary Client) *WithFallback {
	return &WithFallback{Primary: primary, Fallback: NewFallbackClient()}
}

func (w *WithFallback) ModelID() string { return w.Primary.ModelID() }

func (w *WithFallback) Generate(ctx context.Context, query, contextString string, references []Reference) (*Response, error) {
	resp, err := w.Primary.Generate(ctx, query, contextString, references)
	if err == nil {
		return resp, nil
	}
	if genErr, ok := err.(*GenError); ok && genErr.Kind == KindCancelled {
		return nil, err
	}
	return w.Fallback.Generate(ctx, query, contextString, references)
}
