package transport

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

// generatePath is the Ollama text generation endpoint.
const generatePath = "/api/generate"

// tagsPath is the Ollama model listing endpoint, used as a health probe.
const tagsPath = "/api/tags"

// maxErrorBodyBytes bounds how much of an error response body is kept
// for diagnostics.
const maxErrorBodyBytes = 512

// GenerateOptions are the sampling options sent with every generate request.
// Low temperature keeps chat and translation output stable across retries.
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// GenerateRequest is the JSON body of POST /api/generate.
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

// GenerateResponse is the JSON body of a successful generate call.
type GenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`

	// Timing metadata reported by the endpoint, in nanoseconds.
	EvalCount          int   `json:"eval_count,omitempty"`
	EvalDuration       int64 `json:"eval_duration,omitempty"`
	PromptEvalCount    int   `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"`
}

// tagsResponse is the JSON body of GET /api/tags.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// defaultOptions returns the sampling options used for all requests.
func defaultOptions() GenerateOptions {
	return GenerateOptions{
		Temperature: 0.1,
		TopP:        0.9,
	}
}

// postGenerate performs one generate call against the given base URL using
// the given client, translating every failure mode into an AttemptResult.
// Shared by the HTTP and Unix socket transports.
func postGenerate(ctx context.Context, client *http.Client, name, baseURL string, req RequestSpec, timeout time.Duration) AttemptResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(GenerateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Stream:  false,
		Options: defaultOptions(),
	})
	if err != nil {
		return failureResult(name, ReasonMalformedResponse,
			fmt.Sprintf("encode request: %v", err), time.Since(start))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+generatePath, bytes.NewReader(body))
	if err != nil {
		return failureResult(name, ReasonConnectionRefused,
			fmt.Sprintf("build request: %v", err), time.Since(start))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		reason := classifyError(err)
		return failureResult(name, reason, err.Error(), time.Since(start))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return failureResult(name, ReasonServerError,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt))),
			time.Since(start))
	}

	var genResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return failureResult(name, ReasonMalformedResponse,
			fmt.Sprintf("decode response: %v", err), time.Since(start))
	}
	if genResp.Response == "" {
		return failureResult(name, ReasonMalformedResponse,
			"response body missing generated text", time.Since(start))
	}

	return successResult(name, genResp.Response, time.Since(start))
}

// Probe checks whether the endpoint at baseURL is alive by listing its
// models. It uses a short timeout because a healthy local endpoint answers
// the tags call in milliseconds. Returns the available model names.
func Probe(ctx context.Context, baseURL string, timeout time.Duration) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(baseURL, "/")+tagsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe endpoint: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe endpoint: HTTP %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode probe response: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
