package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/voiceforge/api/internal/auth"
	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/engine"
	"github.com/voiceforge/api/internal/handler"
	"github.com/voiceforge/api/internal/middleware"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/service"
	"github.com/voiceforge/api/internal/store"
	ws "github.com/voiceforge/api/internal/websocket"
)

const testJWTSecret = "test-secret-for-e2e"

// stubSynth stands in for the downstream engine. Tests override fn to
// script failures.
type stubSynth struct {
	mu sync.Mutex
	fn func(ctx context.Context, req *client.SynthesisRequest) ([]byte, error)
}

func (s *stubSynth) set(fn func(ctx context.Context, req *client.SynthesisRequest) ([]byte, error)) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
}

func (s *stubSynth) Synthesize(ctx context.Context, req *client.SynthesisRequest) ([]byte, error) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return []byte("RIFF-fake-wav"), nil
}

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	synth *stubSynth
}

// setupApp wires a Fiber app identical to main.go, backed by a temp SQLite
// database, local filesystem storage and a stubbed synthesis engine. Redis
// is absent so rate limiting fails open.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	jobStore := store.NewJobStore(db)
	voiceStore := store.NewVoiceStore(db)
	uploadStore := store.NewUploadStore(db)

	storage, err := client.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	fileService := service.NewFileService(storage)
	voiceService := service.NewVoiceService(voiceStore, uploadStore)
	uploadService := service.NewUploadService(storage, uploadStore, voiceStore, 20*1024*1024)

	synth := &stubSynth{}
	eng := engine.New(engine.Options{
		Jobs:            jobStore,
		Voices:          voiceStore,
		Uploads:         uploadStore,
		Synth:           synth,
		Blobs:           fileService,
		Notifier:        hub,
		MaxAttempts:     3,
		DispatchTimeout: 5 * time.Second,
	})

	engineCtx, stopEngine := context.WithCancel(context.Background())
	t.Cleanup(stopEngine)
	go eng.Run(engineCtx)

	jobHandler := handler.NewJobHandler(eng)
	queueHandler := handler.NewQueueHandler(eng)
	voiceHandler := handler.NewVoiceHandler(voiceService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	audioHandler := handler.NewAudioHandler(fileService)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(nil)

	app := fiber.New(fiber.Config{
		BodyLimit: 25 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":   "voiceforge-api",
			"timestamp": time.Now().Unix(),
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"storage": "local",
			"services": fiber.Map{
				"engine": true,
				"redis":  false,
				"auth":   true,
			},
		})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	jobs := api.Group("/tts/jobs")
	jobs.Post("/", rateLimiter.JobsLimit(10000), jobHandler.Create)
	jobs.Get("/", jobHandler.List)
	jobs.Get("/:id", jobHandler.Get)
	jobs.Post("/:id/cancel", jobHandler.Cancel)
	jobs.Post("/:id/retry", jobHandler.Retry)

	api.Get("/queue/status", queueHandler.Status)

	voices := api.Group("/voices")
	voices.Post("/", voiceHandler.Create)
	voices.Get("/", voiceHandler.List)
	voices.Get("/:id", voiceHandler.Get)
	voices.Delete("/:id", voiceHandler.Delete)

	uploads := api.Group("/uploads")
	uploads.Post("/", rateLimiter.UploadsLimit(10000), uploadHandler.Create)
	uploads.Get("/", uploadHandler.List)
	uploads.Get("/:id", uploadHandler.Get)
	uploads.Delete("/:id", uploadHandler.Delete)

	api.Get("/audio/:audioId", audioHandler.Get)

	return &testApp{app: app, synth: synth}
}

// generateToken creates an HMAC-signed bearer token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := auth.NewAPIClaims("test-user-123", "test@example.com")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// uploadTestFile uploads a small wav file and returns its id.
func uploadTestFile(t *testing.T, ta *testApp, fileName string) string {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("RIFF-fake-wav-content"))
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/uploads/", &buf)
	if err != nil {
		t.Fatalf("build upload request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+generateToken(t))

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	id, _ := result["id"].(string)
	if id == "" {
		t.Fatal("upload response missing id")
	}
	return id
}

// createTestVoice creates a voice from a fresh upload and returns its id.
func createTestVoice(t *testing.T, ta *testApp, name string) string {
	t.Helper()

	uploadID := uploadTestFile(t, ta, name+".wav")
	body := `{"name": "` + name + `", "uploadId": "` + uploadID + `"}`
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/voices/", body)
	if err != nil {
		t.Fatalf("create voice failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	id, _ := result["id"].(string)
	if id == "" {
		t.Fatal("voice response missing id")
	}
	return id
}

// waitForJobState polls the job endpoint until the job reaches the wanted
// state.
func waitForJobState(t *testing.T, ta *testApp, jobID string, want model.JobState) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last map[string]interface{}
	for time.Now().Before(deadline) {
		resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/tts/jobs/"+jobID, "")
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		last = parseJSON(t, resp)
		if last["state"] == string(want) {
			return last
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s, last: %v", jobID, want, last["state"])
	return nil
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts the error code from an error envelope.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	result := parseJSON(t, resp)
	errObj, _ := result["error"].(map[string]interface{})
	code, _ := errObj["code"].(string)
	return code
}
