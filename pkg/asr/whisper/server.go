// Package whisper provides the two whisper.cpp-backed transcription engines:
// the native CGO bindings (Native) and an HTTP client for a running
// whisper-server binary (Server), which exposes a REST API at POST
// /inference.
//
// whisper.cpp is a batch engine, so each utterance is submitted as one
// complete WAV-encapsulated request; there is no cross-utterance state in
// either backend.
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/voxhook/voxhook/pkg/asr"
	"github.com/voxhook/voxhook/pkg/audio"
)

const (
	// bitsPerSample is fixed at 16 for the PCM audio whisper.cpp expects.
	bitsPerSample = 16

	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// requestTimeout bounds a single inference round-trip.
	requestTimeout = 30 * time.Second
)

// Compile-time assertion that Server satisfies asr.Engine.
var _ asr.Engine = (*Server)(nil)

// Server is a transcription engine backed by a whisper-server process.
type Server struct {
	baseURL    string
	language   string
	sampleRate int
	httpClient *http.Client
}

// ServerOption is a functional option for configuring a Server engine.
type ServerOption func(*Server)

// WithServerLanguage sets the language hint forwarded to the server.
func WithServerLanguage(lang string) ServerOption {
	return func(s *Server) { s.language = lang }
}

// WithServerSampleRate sets the sample rate of the PCM handed to Transcribe.
// Defaults to 16000.
func WithServerSampleRate(rate int) ServerOption {
	return func(s *Server) { s.sampleRate = rate }
}

// WithHTTPClient replaces the HTTP client, for tests against httptest
// servers.
func WithHTTPClient(c *http.Client) ServerOption {
	return func(s *Server) { s.httpClient = c }
}

// NewServer creates a Server engine that connects to the whisper-server at
// baseURL (e.g. "http://localhost:8080"). baseURL must be non-empty.
func NewServer(baseURL string, opts ...ServerOption) (*Server, error) {
	if baseURL == "" {
		return nil, errors.New("whisper: server URL must not be empty")
	}
	s := &Server{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ServerFactory adapts NewServer to the [asr.Factory] signature used by
// asr.Open.
func ServerFactory(cfg asr.Config) (asr.Engine, error) {
	var opts []ServerOption
	if cfg.Language != "" {
		opts = append(opts, WithServerLanguage(cfg.Language))
	}
	if cfg.SampleRate > 0 {
		opts = append(opts, WithServerSampleRate(cfg.SampleRate))
	}
	return NewServer(cfg.ServerURL, opts...)
}

// Transcribe submits one utterance as a multipart WAV upload and returns the
// server's transcription.
func (s *Server) Transcribe(ctx context.Context, samples []float32) (asr.Result, error) {
	pcm := audio.Float32ToPCM16(samples)
	wav := encodeWAV(pcm, s.sampleRate, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: write wav data: %w", err)
	}
	if s.language != "" {
		if err := mw.WriteField("language", s.language); err != nil {
			return asr.Result{}, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/inference", &body)
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return asr.Result{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return asr.Result{
		Text:    strings.TrimSpace(result.Text),
		Elapsed: time.Since(start),
	}, nil
}

// Close releases the HTTP client's idle connections.
func (s *Server) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container suitable for direct inclusion in a multipart upload.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
