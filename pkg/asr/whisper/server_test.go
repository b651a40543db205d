package whisper

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxhook/voxhook/pkg/asr"
)

func TestServer_Transcribe(t *testing.T) {
	t.Parallel()

	var gotLanguage string
	var gotWAV []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")

		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		gotWAV, _ = io.ReadAll(f)

		json.NewEncoder(w).Encode(map[string]string{"text": "  open browser \n"})
	}))
	defer srv.Close()

	e, err := NewServer(srv.URL, WithServerLanguage("en"))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer e.Close()

	samples := make([]float32, 1600) // 100 ms of silence
	res, err := e.Transcribe(context.Background(), samples)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if res.Text != "open browser" {
		t.Errorf("text: got %q, want %q", res.Text, "open browser")
	}
	if res.Elapsed <= 0 {
		t.Error("elapsed time not reported")
	}
	if gotLanguage != "en" {
		t.Errorf("language field: got %q, want %q", gotLanguage, "en")
	}

	// WAV header sanity: RIFF/WAVE, mono, 16 kHz, 16-bit, correct data size.
	if len(gotWAV) != 44+len(samples)*2 {
		t.Fatalf("wav length: got %d, want %d", len(gotWAV), 44+len(samples)*2)
	}
	if string(gotWAV[0:4]) != "RIFF" || string(gotWAV[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if ch := binary.LittleEndian.Uint16(gotWAV[22:24]); ch != 1 {
		t.Errorf("channels: got %d, want 1", ch)
	}
	if rate := binary.LittleEndian.Uint32(gotWAV[24:28]); rate != 16000 {
		t.Errorf("sample rate: got %d, want 16000", rate)
	}
	if bits := binary.LittleEndian.Uint16(gotWAV[34:36]); bits != 16 {
		t.Errorf("bits per sample: got %d, want 16", bits)
	}
	if size := binary.LittleEndian.Uint32(gotWAV[40:44]); int(size) != len(samples)*2 {
		t.Errorf("data size: got %d, want %d", size, len(samples)*2)
	}
}

func TestServer_TranscribeHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, err := NewServer(srv.URL)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer e.Close()

	if _, err := e.Transcribe(context.Background(), make([]float32, 160)); err == nil {
		t.Fatal("expected error for HTTP 500 response")
	}
}

func TestNewServer_EmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(""); err == nil {
		t.Fatal("expected error for empty server URL")
	}
}

func TestServerFactory(t *testing.T) {
	t.Parallel()

	if _, err := ServerFactory(asr.Config{ServerURL: "http://localhost:9000/"}); err != nil {
		t.Fatalf("ServerFactory: %v", err)
	}
	if _, err := ServerFactory(asr.Config{}); err == nil {
		t.Fatal("expected ServerFactory to reject empty URL")
	}
}
