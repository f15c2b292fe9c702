package eqprofile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a local Ollama API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates an Ollama client.
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // first call loads the model
		},
	}
}

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Format  string         `json:"format,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// generateResponse is the Ollama /api/generate response.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

const systemPrompt = `You are an expert audio engineer specializing in vocal mixing and production.

Given a desired production context, recommend an EQ profile and processing settings for a lead vocal.
Answer with a single JSON object and nothing else:

{
  "recommendedEqProfile": [{"type": "lowcut|highshelf|peak|lowshelf|highcut", "frequency": Hz, "gain": dB, "q": number (optional)}],
  "compressorSettings": {"threshold": dB, "ratio": "4:1", "attack": ms, "release": ms, "makeupGain": dB} (optional),
  "reverbSettings": {"type": "hall|room|plate|spring|gated|delay", "dryWet": 0-100, "decayTime": seconds, "preDelay": ms (optional)} (optional),
  "otherProcessingNotes": "saturation, parallel compression, transient shaping..." (optional)
}

Be specific with frequencies, gains and Q factors. Omit parameters that do not apply.`

// Available checks if Ollama is reachable.
func (c *Client) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == 200
}

// Generate asks the model for a profile matching productionContext.
func (c *Client) Generate(ctx context.Context, productionContext string) (Profile, error) {
	productionContext = strings.TrimSpace(productionContext)
	if productionContext == "" {
		return Profile{}, fmt.Errorf("%w: empty production context", ErrInvalidProfile)
	}

	body := generateRequest{
		Model:  c.model,
		Prompt: "Production Context: " + productionContext,
		System: systemPrompt,
		Format: "json",
		Stream: false,
		Options: map[string]any{
			"temperature": 0.4,
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Profile{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return Profile{}, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Profile{}, fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Profile{}, fmt.Errorf("decode: %w", err)
	}

	var p Profile
	if err := json.Unmarshal([]byte(strings.TrimSpace(result.Response)), &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}
