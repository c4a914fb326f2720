package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
)

// Client calls a remote answer engine over HTTP (POST {base}/query).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an answer engine client with the given base URL and
// wall-clock timeout.
func NewClient(log *slog.Logger, baseURL, apiKey string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("service", "answer-client")),
	}
}

type queryRequest struct {
	Question    string             `json:"question"`
	ChatHistory []channel.ChatTurn `json:"chat_history,omitempty"`
}

// Query sends the question to the engine and decodes the response. Transport
// and non-2xx failures surface as plain errors; the pipeline maps them to
// RAG_SERVICE_ERROR.
func (c *Client) Query(ctx context.Context, question string, history []channel.ChatTurn) (Response, error) {
	payload, err := json.Marshal(queryRequest{Question: question, ChatHistory: history})
	if err != nil {
		return Response{}, fmt.Errorf("encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("answer engine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Response{}, fmt.Errorf("answer engine status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode answer: %w", err)
	}
	c.logger.Debug("answer engine query complete",
		slog.Duration("latency", time.Since(start)),
		slog.String("strategy", out.RAGStrategy))
	return out, nil
}
