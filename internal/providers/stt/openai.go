// Package stt provides STT collaborator adapters over hosted
// transcription APIs.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/vox-duplex/voicepipe/internal/metrics"
	"github.com/vox-duplex/voicepipe/internal/providers"
)

// OpenAIWhisper transcribes a WAV buffer via OpenAI's
// /v1/audio/transcriptions endpoint. Whisper doesn't stream, so Stream
// yields exactly one chunk with the full transcript.
type OpenAIWhisper struct {
	apiKey string
	url    string
	model  string
	client *http.Client
}

func NewOpenAIWhisper(apiKey, baseURL, model string, poolSize int) *OpenAIWhisper {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAIWhisper{
		apiKey: apiKey,
		url:    baseURL + "/v1/audio/transcriptions",
		model:  model,
		client: providers.NewPooledHTTPClient(poolSize, 30*time.Second),
	}
}

func (w *OpenAIWhisper) Name() string { return "openai-whisper" }

func (w *OpenAIWhisper) Stream(ctx context.Context, wavPCM []byte, sampleRate int) (<-chan string, <-chan error) {
	out := make(chan string, 1)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		start := time.Now()

		body, contentType, err := buildMultipartWAV(wavPCM, w.model)
		if err != nil {
			errc <- fmt.Errorf("stt: build request body: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, body)
		if err != nil {
			errc <- fmt.Errorf("stt: build request: %w", err)
			return
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+w.apiKey)

		resp, err := w.client.Do(req)
		if err != nil {
			metrics.Errors.WithLabelValues("stt", "http").Inc()
			errc <- fmt.Errorf("stt: request: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			metrics.Errors.WithLabelValues("stt", "status").Inc()
			errc <- fmt.Errorf("stt: status %d: %s", resp.StatusCode, respBody)
			return
		}

		var result struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			errc <- fmt.Errorf("stt: decode response: %w", err)
			return
		}

		metrics.StageDuration.WithLabelValues("transcriber").Observe(time.Since(start).Seconds())

		select {
		case out <- result.Text:
		case <-ctx.Done():
		}
	}()

	return out, errc
}

func buildMultipartWAV(wavData []byte, model string) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("model", model); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}

var _ providers.STT = (*OpenAIWhisper)(nil)
