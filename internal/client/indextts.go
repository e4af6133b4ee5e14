package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/voiceforge/api/internal/config"
	"github.com/voiceforge/api/internal/model"
)

// ErrorKind classifies a downstream failure. Busy and transport errors are
// transient and drive a re-queue; invalid and permanent errors fail the job
// immediately.
type ErrorKind string

const (
	ErrKindBusy      ErrorKind = "busy"
	ErrKindTransport ErrorKind = "transport"
	ErrKindInvalid   ErrorKind = "invalid"
	ErrKindPermanent ErrorKind = "permanent"
)

// DownstreamError is a typed failure from the synthesis engine.
type DownstreamError struct {
	Kind    ErrorKind
	Message string
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("downstream %s: %s", e.Kind, e.Message)
}

// Retryable reports whether the failure is transient.
func (e *DownstreamError) Retryable() bool {
	return e.Kind == ErrKindBusy || e.Kind == ErrKindTransport
}

// Synthesizer performs one synthesis call against the downstream engine.
// The engine processes exactly one request at a time; the caller enforces
// that discipline, not the client.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *SynthesisRequest) ([]byte, error)
}

// SynthesisRequest is the wire payload for one dispatch. []byte fields are
// serialized as base64 by encoding/json, matching the engine's API.
type SynthesisRequest struct {
	Mode                    model.TtsMode         `json:"-"`
	Text                    string                `json:"text"`
	PromptAudio             []byte                `json:"prompt_audio"`
	MaxTextTokensPerSegment int                   `json:"max_text_tokens_per_segment"`
	GenerationArgs          *model.GenerationArgs `json:"generation_args,omitempty"`
	EmotionAudio            []byte                `json:"emotion_audio,omitempty"`
	EmotionWeight           *float64              `json:"emotion_weight,omitempty"`
	EmotionFactors          map[string]float64    `json:"emotion_factors,omitempty"`
	EmotionRandom           *bool                 `json:"emotion_random,omitempty"`
	EmotionText             string                `json:"emotion_text,omitempty"`
}

// IndexTTSClient calls an IndexTTS HTTP service. Each mode maps to its own
// /synthesize endpoint; the response body is a base64-encoded WAV string.
type IndexTTSClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewIndexTTSClient creates a new downstream engine client. Timeouts are
// applied per call through the context, not on the HTTP client, so the
// worker owns the dispatch deadline.
func NewIndexTTSClient(cfg *config.EngineConfig) *IndexTTSClient {
	return &IndexTTSClient{
		httpClient: &http.Client{},
		baseURL:    cfg.BaseURL,
	}
}

// Synthesize performs a single synthesis call and returns the raw WAV bytes.
func (c *IndexTTSClient) Synthesize(ctx context.Context, req *SynthesisRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &DownstreamError{Kind: ErrKindInvalid, Message: fmt.Sprintf("encode request: %v", err)}
	}

	endpoint := fmt.Sprintf("%s/synthesize/%s", c.baseURL, req.Mode)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &DownstreamError{Kind: ErrKindInvalid, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Preserve context errors so the caller can tell a timeout or a
		// cancellation apart from a connection failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &DownstreamError{Kind: ErrKindTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &DownstreamError{Kind: ErrKindTransport, Message: err.Error()}
	}

	// The engine returns a base64 WAV string as a JSON document.
	var encoded string
	if err := json.Unmarshal(respBody, &encoded); err != nil {
		return nil, &DownstreamError{Kind: ErrKindPermanent, Message: "unexpected response shape"}
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &DownstreamError{Kind: ErrKindPermanent, Message: "invalid base64 audio"}
	}
	return audio, nil
}

func classifyStatus(resp *http.Response) *DownstreamError {
	msg := readErrorMessage(resp)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return &DownstreamError{Kind: ErrKindBusy, Message: msg}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &DownstreamError{Kind: ErrKindInvalid, Message: msg}
	default:
		return &DownstreamError{Kind: ErrKindPermanent, Message: msg}
	}
}

func readErrorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil || len(body) == 0 {
		return fmt.Sprintf("engine returned status %d", resp.StatusCode)
	}

	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("engine returned status %d: %s", resp.StatusCode, string(body))
}

// Classify maps an arbitrary dispatch error onto an ErrorKind. Context
// errors count as transport failures: a timed-out attempt may be retried.
func Classify(err error) (ErrorKind, string) {
	var de *DownstreamError
	if errors.As(err, &de) {
		return de.Kind, de.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTransport, "dispatch timed out"
	}
	if errors.Is(err, context.Canceled) {
		return ErrKindTransport, "dispatch aborted"
	}
	return ErrKindPermanent, err.Error()
}
