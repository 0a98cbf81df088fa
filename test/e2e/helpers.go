//go:build e2e

package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/candorhq/tacit/internal/api/handlers"
	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/repository"
	"github.com/candorhq/tacit/internal/server"
	"github.com/candorhq/tacit/internal/service"
	"github.com/candorhq/tacit/internal/storage"
	"github.com/candorhq/tacit/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const embeddingDim = 1536

// stubModel is a deterministic stand-in for the OpenAI client. Embeddings
// are normalized bags of hashed words, so cosine similarity tracks word
// overlap between query and chunk. Completions stream a fixed answer.
type stubModel struct{}

func embedText(text string) []float32 {
	vec := make([]float32, embeddingDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?:;\"'()")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%embeddingDim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (stubModel) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return embedText(text), nil
}

func (stubModel) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = embedText(text)
	}
	return vectors, nil
}

func (stubModel) Stream(ctx context.Context, prompt string, fn func(delta string) error) (string, error) {
	deltas := []string{"Based on the team's notes, ", "here is what applies ", "to your question."}
	var full strings.Builder
	for _, d := range deltas {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := fn(d); err != nil {
			return "", err
		}
		full.WriteString(d)
	}
	return full.String(), nil
}

// E2EEnv holds all resources needed for end-to-end tests
type E2EEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	HTTPClient   *http.Client
}

// SetupE2EEnv starts the containers, runs migrations, and serves the full
// router backed by the stub model client.
func SetupE2EEnv(t *testing.T) *E2EEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, s3Client, port)

	return &E2EEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2EEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// startServer wires the full service graph against the stub model client
// and serves it on the given port.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func()) {
	chunkRepo := repository.NewChunkRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)

	model := stubModel{}

	chunker, err := service.NewChunker(200, 40)
	if err != nil {
		t.Fatalf("failed to create chunker: %v", err)
	}

	indexer := service.NewIndexer(chunker, model, chunkRepo)
	retriever := service.NewRetrieverWithDefaults(model, chunkRepo, 0.2, 5)
	composer := service.NewComposer()
	coordinator := service.NewCoordinator(retriever, composer, model, conversationRepo)
	conversationSvc := service.NewConversationService(conversationRepo)
	documentSvc := service.NewDocumentService(s3Client, documentRepo, indexer)

	router := server.NewRouter(server.RouterConfig{
		KnowledgeHandler:    handlers.NewKnowledgeHandler(indexer, retriever),
		ConversationHandler: handlers.NewConversationHandler(conversationSvc),
		ChatHandler:         handlers.NewChatHandler(coordinator),
		DocumentHandler:     handlers.NewDocumentHandler(documentSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// APIResponse represents a standard API response envelope
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request scoped to the given tenant
func (e *E2EEnv) Get(path, tenantID string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, tenantID)
}

// Post performs a POST request scoped to the given tenant
func (e *E2EEnv) Post(path string, body interface{}, tenantID string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, tenantID)
}

// Delete performs a DELETE request scoped to the given tenant
func (e *E2EEnv) Delete(path, tenantID string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, tenantID)
}

func (e *E2EEnv) doRequest(method, path string, body interface{}, tenantID string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// TurnEvent mirrors the streamed chat event payload
type TurnEvent struct {
	Type               string          `json:"type"`
	Sources            []domain.Source `json:"sources,omitempty"`
	Delta              string          `json:"delta,omitempty"`
	UserMessageID      string          `json:"userMessageId,omitempty"`
	AssistantMessageID string          `json:"assistantMessageId,omitempty"`
	Title              string          `json:"title,omitempty"`
	Error              string          `json:"error,omitempty"`
}

// Chat posts a chat turn and collects all streamed events. A non-200
// response is returned as an error built from the JSON error body.
func (e *E2EEnv) Chat(body interface{}, tenantID string) ([]TurnEvent, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Tenant-ID", tenantID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var events []TurnEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev TurnEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return nil, fmt.Errorf("failed to parse event %q: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
