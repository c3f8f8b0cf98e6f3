package grader

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

// RemoteConfig configures the HTTP model grader.
type RemoteConfig struct {
	// BaseURL is the grading service root, e.g. "http://grader:9000".
	BaseURL string

	// APIKey is sent as a Bearer token when set.
	APIKey string

	// HTTPClient allows injecting a custom client. Defaults to a client with
	// a 30s timeout; per-call deadlines come from the context.
	HTTPClient *http.Client
}

// Remote grades photos and free-form answers by calling a vision/language
// model service. The service answers {"confidence": <0..1>}.
type Remote struct {
	cfg  RemoteConfig
	http *http.Client
}

func NewRemote(cfg RemoteConfig) *Remote {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Remote{cfg: cfg, http: httpClient}
}

type photoRequest struct {
	ImageRef         string   `json:"imageRef"`
	RequiredElements []string `json:"requiredElements"`
}

type semanticRequest struct {
	Answer string `json:"answer"`
	Prompt string `json:"prompt"`
}

type gradeResponse struct {
	Confidence float64 `json:"confidence"`
}

func (r *Remote) GradePhoto(ctx context.Context, imageRef string, requiredElements []string) (float64, error) {
	return r.grade(ctx, "/v1/grade/photo", photoRequest{ImageRef: imageRef, RequiredElements: requiredElements})
}

func (r *Remote) GradeSemantic(ctx context.Context, answer, prompt string) (float64, error) {
	return r.grade(ctx, "/v1/grade/semantic", semanticRequest{Answer: answer, Prompt: prompt})
}

func (r *Remote) grade(ctx context.Context, path string, body any) (float64, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling grader: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("grader returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out gradeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding grader response: %w", err)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return 0, fmt.Errorf("grader confidence %v outside [0,1]", out.Confidence)
	}
	return out.Confidence, nil
}
