package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tidewatch/battlecore/internal/storage"
	"github.com/tidewatch/battlecore/pkg/core"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000", "secret123")

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected baseURL=http://localhost:5000, got %s", c.baseURL)
	}
	if c.apiKey != "secret123" {
		t.Errorf("expected apiKey=secret123, got %s", c.apiKey)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("expected path /healthcheck, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.Healthcheck()
	if err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	c := New("http://localhost:59999", "") // unlikely to be listening
	err := c.Healthcheck()
	if err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.Healthcheck()
	if err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestUpload_Success(t *testing.T) {
	var fields = map[string]string{}
	var receivedFileContent []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/battles/upload" {
			t.Errorf("expected path /api/v1/battles/upload, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		err := r.ParseMultipartForm(10 << 20)
		if err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
			return
		}
		for _, k := range []string{"secret", "filename", "sessionId", "objective", "outcome", "winner", "turns", "duration", "objectiveCompleted"} {
			fields[k] = r.FormValue(k)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("failed to get file: %v", err)
			return
		}
		defer file.Close()

		receivedFileContent = make([]byte, 1024)
		n, _ := file.Read(receivedFileContent)
		receivedFileContent = receivedFileContent[:n]

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	testFile := writeTestFile(t, "battle_s1.json.gz", []byte("test content"))

	c := New(server.URL, "mysecret")
	meta := storage.UploadMetadata{
		SessionID:          "s1",
		Objective:          "destroy_all",
		Outcome:            "side_eliminated",
		Winner:             "player",
		Turns:              7,
		DurationSeconds:    3600.5,
		ObjectiveCompleted: true,
	}

	err := c.Upload(context.Background(), testFile, meta)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	want := map[string]string{
		"secret":             "mysecret",
		"filename":           "battle_s1.json.gz",
		"sessionId":          "s1",
		"objective":          "destroy_all",
		"outcome":            "side_eliminated",
		"winner":             "player",
		"turns":              "7",
		"duration":           "3600.500000",
		"objectiveCompleted": "true",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("expected %s=%s, got %s", k, v, fields[k])
		}
	}
	if string(receivedFileContent) != "test content" {
		t.Errorf("expected file content 'test content', got '%s'", string(receivedFileContent))
	}
}

func TestUpload_FileNotFound(t *testing.T) {
	c := New("http://localhost:5000", "secret")
	err := c.Upload(context.Background(), "/nonexistent/file.json.gz", storage.UploadMetadata{})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	testFile := writeTestFile(t, "test.json.gz", []byte("content"))

	c := New(server.URL, "wrong-secret")
	err := c.Upload(context.Background(), testFile, storage.UploadMetadata{})
	if err == nil {
		t.Error("expected error for 403 response")
	}
}

func TestReportBattle_PostsRecord(t *testing.T) {
	var got core.BattleRecord
	var apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/battles" {
			t.Errorf("expected path /api/v1/battles, got %s", r.URL.Path)
		}
		apiKey = r.Header.Get("X-Api-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	rec := core.BattleRecord{
		SessionID:    "s1",
		Objective:    "destroy_all",
		StartedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Turns:        4,
		Outcome:      "qrf_timeout",
		Participants: []string{"p1"},
	}
	c := New(server.URL, "k")
	if err := c.ReportBattle(context.Background(), rec); err != nil {
		t.Fatalf("ReportBattle failed: %v", err)
	}
	if got.SessionID != "s1" || got.Turns != 4 || got.Outcome != "qrf_timeout" {
		t.Errorf("unexpected record received: %+v", got)
	}
	if apiKey != "k" {
		t.Errorf("expected api key header k, got %q", apiKey)
	}
}

type fakeExports struct {
	path string
	meta storage.UploadMetadata
}

func (f fakeExports) GetExportedFilePath() string { return f.path }
func (f fakeExports) GetExportMetadata() storage.UploadMetadata { return f.meta }

func TestReportBattle_UploadsMatchingExport(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	file := writeTestFile(t, "s1.json.gz", []byte("report"))
	c := New(server.URL, "k").WithExports(fakeExports{path: file, meta: storage.UploadMetadata{SessionID: "s1"}})

	if err := c.ReportBattle(context.Background(), core.BattleRecord{SessionID: "s1"}); err != nil {
		t.Fatalf("ReportBattle failed: %v", err)
	}
	// export belongs to another session, so the record is posted instead
	if err := c.ReportBattle(context.Background(), core.BattleRecord{SessionID: "s2"}); err != nil {
		t.Fatalf("ReportBattle failed: %v", err)
	}

	want := []string{"/api/v1/battles/upload", "/api/v1/battles"}
	if len(paths) != len(want) {
		t.Fatalf("expected %d requests, got %v", len(want), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("request %d: expected %s, got %s", i, want[i], paths[i])
		}
	}
}

func TestReportBattle_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(server.URL, "k")
	if err := c.ReportBattle(context.Background(), core.BattleRecord{SessionID: "s1"}); err == nil {
		t.Error("expected error for 502 response")
	}
}

func writeTestFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}
