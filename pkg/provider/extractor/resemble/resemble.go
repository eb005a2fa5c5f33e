// Package resemble provides an extractor backed by a voice-encoder sidecar
// exposing a resemblyzer-style REST API.
//
// The sidecar accepts a WAV clip via POST /embed and responds with a JSON
// body containing the utterance-level d-vector. Any server wrapping a
// speaker-encoder model with this two-endpoint contract works:
//
//	POST /embed      audio/wav body → {"embedding": [...], "model": "..."}
//
// Example:
//
//	p, err := resemble.New("http://localhost:9090", resemble.WithDimensions(256))
//	vec, err := p.Extract(ctx, wavBytes)
package resemble

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/voxident/voxident/pkg/provider/extractor"
)

// DefaultBaseURL is where a locally running encoder sidecar listens.
const DefaultBaseURL = "http://localhost:9090"

// Compile-time interface check.
var _ extractor.Provider = (*Provider)(nil)

// Provider implements extractor.Provider against an encoder sidecar.
//
// Dimension resolution order:
//  1. Value supplied via WithDimensions.
//  2. Length of the first successfully extracted vector, cached for the
//     lifetime of the Provider.
//
// Provider is safe for concurrent use.
type Provider struct {
	baseURL    string
	httpClient *http.Client

	mu         sync.Mutex
	dimensions int
	model      string
}

// config holds optional settings collected from functional options.
type config struct {
	timeout    time.Duration
	dimensions int
	model      string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout on the underlying client.
// A zero or negative value means no timeout (the default).
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithDimensions pre-sets the embedding dimension, avoiding the lazy
// detection that Dimensions() would otherwise perform from the first
// extracted vector. Use this when the dimension is known in advance
// (resemblyzer d-vectors are 256-wide).
func WithDimensions(dims int) Option {
	return func(c *config) { c.dimensions = dims }
}

// WithModel sets the model identifier reported by ModelID when the sidecar
// does not include one in its responses.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// New constructs a Provider for the encoder sidecar at baseURL. If baseURL
// is empty, DefaultBaseURL is used; a trailing slash is stripped.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	httpClient := &http.Client{}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	return &Provider{
		baseURL:    baseURL,
		httpClient: httpClient,
		dimensions: cfg.dimensions,
		model:      cfg.model,
	}, nil
}

// embedResponse is the JSON body returned by the sidecar's /embed endpoint.
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// Extract implements extractor.Provider by submitting the WAV clip to the
// sidecar. Returns an error if the HTTP request fails, the server returns a
// non-200 status, the response cannot be decoded, or ctx is cancelled.
func (p *Provider) Extract(ctx context.Context, wav []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(wav))
	if err != nil {
		return nil, fmt.Errorf("resemble extractor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resemble extractor: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resemble extractor: unexpected status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("resemble extractor: decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("resemble extractor: empty embedding in response")
	}

	p.mu.Lock()
	if p.dimensions == 0 {
		p.dimensions = len(result.Embedding)
	}
	if p.model == "" && result.Model != "" {
		p.model = result.Model
	}
	p.mu.Unlock()

	return result.Embedding, nil
}

// Dimensions implements extractor.Provider. Returns 0 until either a value
// was configured via WithDimensions or the first extraction succeeded.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dimensions
}

// ModelID implements extractor.Provider.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == "" {
		return "resemble"
	}
	return p.model
}
