// Command loadtest drives concurrent synthetic calls against a running
// voicepipe server and reports per-stage latency percentiles.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	server := flag.String("server", "ws://localhost:8000/ws", "voicepipe server WebSocket URL")
	concurrency := flag.Int("concurrency", 10, "number of concurrent callers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	audioDir := flag.String("audio-dir", "/samples", "directory with raw PCM16 sample files")
	sttEngine := flag.String("stt-engine", "openai", "stt_engine query param")
	agentEngine := flag.String("agent-engine", "openai", "agent_engine query param")
	ttsEngine := flag.String("tts-engine", "openai", "tts_engine query param")
	flag.Parse()

	files, err := findAudioFiles(*audioDir)
	if err != nil || len(files) == 0 {
		fmt.Fprintf(os.Stderr, "no audio files in %s, generating synthetic audio\n", *audioDir)
		files = nil
	}

	fmt.Printf("Load test: %d concurrent calls for %s\n", *concurrency, *duration)
	fmt.Printf("Server: %s | stt=%s agent=%s tts=%s\n\n", *server, *sttEngine, *agentEngine, *ttsEngine)

	var mu sync.Mutex
	var results []callResult
	var wg sync.WaitGroup

	deadline := time.Now().Add(*duration)

	for range *concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				r := runCall(*server, *sttEngine, *agentEngine, *ttsEngine, files)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	printSummary(results)
}

type callResult struct {
	success      bool
	transcriptMs float64
	responseMs   float64
	speechMs     float64
	totalMs      float64
	err          string
}

// wireEvent mirrors internal/pipeline's JSON event shape; loadtest only
// needs the type and timestamp fields to measure stage latency.
type wireEvent struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

func runCall(serverURL, sttEngine, agentEngine, ttsEngine string, files []string) callResult {
	url := fmt.Sprintf("%s?stt_engine=%s&agent_engine=%s&tts_engine=%s", serverURL, sttEngine, agentEngine, ttsEngine)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return callResult{err: fmt.Sprintf("dial: %v", err)}
	}
	defer conn.Close()

	start := time.Now()
	pcm := getAudioData(files)
	if err := sendFrames(conn, pcm); err != nil {
		return callResult{err: fmt.Sprintf("send audio: %v", err)}
	}

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var r callResult
	var sawTranscript, sawResponse, sawSpeech bool
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if sawSpeech {
				r.success = true
				r.totalMs = float64(time.Since(start).Milliseconds())
			} else {
				r.err = fmt.Sprintf("read: %v", err)
			}
			return r
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var ev wireEvent
		if json.Unmarshal(data, &ev) != nil {
			continue
		}
		elapsed := float64(time.Since(start).Milliseconds())
		switch ev.Type {
		case "user.transcript.end":
			if !sawTranscript {
				sawTranscript = true
				r.transcriptMs = elapsed
			}
		case "ai.response.text.start":
			if !sawResponse {
				sawResponse = true
				r.responseMs = elapsed
			}
		case "ai.response.speech.start":
			if !sawSpeech {
				sawSpeech = true
				r.speechMs = elapsed
			}
		case "ai.response.speech.end":
			r.success = true
			r.totalMs = elapsed
			return r
		}
	}
}

// frameHeader writes the 10-byte big-endian (flag uint16, timestamp_ms
// uint64) header the pipeline's Ingest stage expects.
func frameHeader(flag uint16, ts time.Time) []byte {
	b := make([]byte, 10)
	binary.BigEndian.PutUint16(b[0:2], flag)
	binary.BigEndian.PutUint64(b[2:10], uint64(ts.UnixMilli()))
	return b
}

func sendFrames(conn *websocket.Conn, pcm []byte) error {
	const chunkSamples = 320 // 20ms at 16kHz
	chunkBytes := chunkSamples * 2
	for i := 0; i < len(pcm); i += chunkBytes {
		end := i + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		frame := append(frameHeader(0, time.Now()), pcm[i:end]...)
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return err
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}

func getAudioData(files []string) []byte {
	if len(files) > 0 {
		data, err := os.ReadFile(files[rand.Intn(len(files))])
		if err == nil {
			return data
		}
	}
	return generateSyntheticAudio(3 * time.Second)
}

func generateSyntheticAudio(dur time.Duration) []byte {
	sampleRate := 16000
	numSamples := int(dur.Seconds()) * sampleRate
	buf := make([]byte, numSamples*2)

	for i := range numSamples {
		t := float64(i) / float64(sampleRate)
		sample := math.Sin(2*math.Pi*440*t)*0.3 + (rand.Float64()-0.5)*0.05
		val := int16(sample * math.MaxInt16)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(val))
	}
	return buf
}

var audioExts = map[string]bool{".pcm": true, ".raw": true, ".wav": true}

func findAudioFiles(dir string) ([]string, error) {
	var files []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if audioExts[filepath.Ext(e.Name())] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func printSummary(results []callResult) {
	var succeeded, failed int
	var transcriptAll, responseAll, speechAll, e2eAll []float64

	for _, r := range results {
		if !r.success {
			failed++
			continue
		}
		succeeded++
		transcriptAll = append(transcriptAll, r.transcriptMs)
		responseAll = append(responseAll, r.responseMs)
		speechAll = append(speechAll, r.speechMs)
		e2eAll = append(e2eAll, r.totalMs)
	}

	fmt.Printf("\n=== Load Test Results ===\n")
	fmt.Printf("Calls completed: %d\n", succeeded)
	fmt.Printf("Calls failed:    %d\n", failed)

	if len(transcriptAll) == 0 {
		fmt.Println("No successful calls to report metrics")
		return
	}

	fmt.Printf("\n%-12s %8s %8s %8s\n", "Stage", "p50", "p95", "p99")
	fmt.Printf("%-12s %8.0fms %8.0fms %8.0fms\n", "transcript", percentile(transcriptAll, 50), percentile(transcriptAll, 95), percentile(transcriptAll, 99))
	fmt.Printf("%-12s %8.0fms %8.0fms %8.0fms\n", "response", percentile(responseAll, 50), percentile(responseAll, 95), percentile(responseAll, 99))
	fmt.Printf("%-12s %8.0fms %8.0fms %8.0fms\n", "speech", percentile(speechAll, 50), percentile(speechAll, 95), percentile(speechAll, 99))
	fmt.Printf("%-12s %8.0fms %8.0fms %8.0fms\n", "e2e", percentile(e2eAll, 50), percentile(e2eAll, 95), percentile(e2eAll, 99))
}

func percentile(data []float64, pct float64) float64 {
	sort.Float64s(data)
	idx := int(math.Ceil(pct/100*float64(len(data)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(data) {
		idx = len(data) - 1
	}
	return data[idx]
}
