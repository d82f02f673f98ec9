// Command piper-sidecar wraps the piper binary behind a small HTTP API,
// consumed by internal/providers/tts.PiperTTS for the "fast"/"quality"
// TTS engines.
//
// /synthesize streams raw little-endian signed-16 PCM straight from
// piper's stdout (--output_raw) rather than writing a WAV file and serving
// it whole, so the HTTP response body can be read as PCM chunks directly
// and the first audio bytes reach the client before synthesis finishes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var modelDir = envOr("PIPER_MODEL_DIR", "/models")

type synthRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func main() {
	port := envOr("PIPER_SIDECAR_PORT", "5100")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/synthesize", handleSynthesize)

	log.Printf("piper-sidecar listening on :%s (models: %s)", port, modelDir)
	log.Fatal(http.ListenAndServe(":"+port, mux))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte(`{"status":"ok"}`))
}

func handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req synthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	voice := resolveVoice(req.Voice)
	w.Header().Set("Content-Type", "application/octet-stream")
	if err := streamPiper(r.Context(), w, req.Text, voice); err != nil {
		log.Printf("piper-sidecar: synthesize failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func resolveVoice(voice string) string {
	if voice != "" {
		return voice
	}
	return envOr("PIPER_VOICE", "en_US-lessac-medium")
}

// streamPiper runs the piper binary with --output_raw, piping its stdout
// (raw PCM16 at the voice's native sample rate) directly to w as it is
// produced, so the first audio bytes reach the client before piper has
// finished synthesizing the whole utterance.
func streamPiper(ctx context.Context, w io.Writer, text, voice string) error {
	modelPath := filepath.Join(modelDir, voice+".onnx")
	configPath := filepath.Join(modelDir, voice+".onnx.json")

	cmd := exec.CommandContext(ctx, "/usr/local/bin/piper",
		"--model", modelPath,
		"--config", configPath,
		"--output_raw",
	)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = w

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("piper: %v: %s", err, stderr.String())
	}
	return nil
}
