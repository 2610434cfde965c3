package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/errs"
)

// Client synthesizes speech through an OpenAI-compatible /audio/speech
// endpoint and returns the audio bytes (MP3 by default). Thread-safe for
// concurrent use by the worker pool.
type Client struct {
	cfg        config.TTSConfig
	httpClient *http.Client
}

// speechRequest is the provider's synthesis payload.
type speechRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
	Input string `json:"input"`
}

// errorResponse is the provider's error envelope.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewClient(cfg config.TTSConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) Synthesize(ctx context.Context, text, targetLanguage string) ([]byte, error) {
	if text == "" {
		return nil, errs.New(errs.TypeSynthesis, "empty text")
	}

	payload, err := json.Marshal(speechRequest{
		Model: c.cfg.Model,
		Voice: c.cfg.Voice,
		Input: text,
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.TypeSynthesis, "marshal synthesis request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, errs.Wrap(err, errs.TypeSynthesis, "create synthesis request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(err, errs.TypeSynthesis, "synthesis call failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(err, errs.TypeSynthesis, "read synthesis response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, errs.Newf(errs.TypeSynthesis, "provider error: %s", apiErr.Error.Message)
		}
		return nil, errs.Newf(errs.TypeSynthesis, "provider returned status %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, errs.New(errs.TypeSynthesis, "provider returned empty audio")
	}
	return body, nil
}
