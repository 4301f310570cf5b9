// Package gemini wraps the Google Gen AI SDK for the three kinds of calls the
// pipeline makes: grounded discovery, schema-constrained extraction and plain
// structured generation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// Grounding selects the search tool attached to a request.
type Grounding int

const (
	GroundingNone Grounding = iota
	GroundingSearch
	GroundingMaps
)

// LatLng biases Maps grounding toward a location.
type LatLng struct {
	Latitude  float64
	Longitude float64
}

// Request is a single GenerateContent call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Grounding   Grounding
	Location    *LatLng
	Schema      *genai.Schema
	Temperature *float32
}

// Response is the text of the first candidate plus grounding metadata.
type Response struct {
	Text    string
	Model   string
	Sources []string
	Usage   Usage
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens    int32
	CandidateTokens int32
}

// Client generates content with Gemini.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// StatusError carries the HTTP status of a failed API call.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*options)

type options struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// WithBaseURL overrides the API base URL (for testing or proxies).
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithHTTPClient overrides the http.Client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

type sdkClient struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, eris.New("gemini: api key is not configured")
	}

	o := options{model: defaultModel}
	for _, opt := range opts {
		opt(&o)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cc.HTTPOptions.BaseURL = o.baseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client, model: o.model}, nil
}

func (c *sdkClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), buildConfig(req))
	if err != nil {
		return nil, mapErr(err)
	}

	out := &Response{
		Text:    resp.Text(),
		Model:   model,
		Sources: extractSources(resp),
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:    resp.UsageMetadata.PromptTokenCount,
			CandidateTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	return out, nil
}

func buildConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		CandidateCount: 1,
		Temperature:    req.Temperature,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	switch req.Grounding {
	case GroundingSearch:
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	case GroundingMaps:
		cfg.Tools = []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}}
		if req.Location != nil {
			cfg.ToolConfig = &genai.ToolConfig{
				RetrievalConfig: &genai.RetrievalConfig{
					LatLng: &genai.LatLng{
						Latitude:  genai.Ptr(req.Location.Latitude),
						Longitude: genai.Ptr(req.Location.Longitude),
					},
				},
			}
		}
	}

	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}
	return cfg
}

func mapErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.Code, Err: err}
	}
	return eris.Wrap(err, "gemini: generate content")
}

func extractSources(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(uri string) {
		uri = strings.TrimSpace(uri)
		if uri == "" {
			return
		}
		if _, ok := seen[uri]; ok {
			return
		}
		seen[uri] = struct{}{}
		out = append(out, uri)
	}
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil {
			continue
		}
		if chunk.Web != nil {
			add(chunk.Web.URI)
		}
		if chunk.Maps != nil {
			add(chunk.Maps.URI)
		}
	}
	return out
}
