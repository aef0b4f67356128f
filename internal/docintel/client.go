package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

var _ Analyzer = (*Client)(nil)

// Client is a REST client for the Azure Document Intelligence analyze API.
type Client struct {
	client *http.Client
	logger *slog.Logger

	url          string
	token        string
	apiVersion   string
	pollInterval time.Duration
}

type Option func(*Client)

func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithAPIVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.apiVersion = v
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(endpoint string, options ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "document intelligence endpoint is required", common.ErrConfig)
	}

	c := &Client{
		client:       &http.Client{Timeout: 60 * time.Second},
		logger:       slog.Default(),
		url:          strings.TrimRight(endpoint, "/"),
		apiVersion:   "2024-11-30",
		pollInterval: 2 * time.Second,
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// Analyze posts the document and polls the returned operation until it settles.
func (c *Client) Analyze(ctx context.Context, modelID string, document []byte, pages []int) (*AnalysisResult, error) {
	if modelID == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "model id is required", common.ErrConfig)
	}
	if len(document) == 0 {
		return nil, common.NewAppError("INVALID_DOCUMENT", "empty document", common.ErrInvalidInput)
	}

	reqID := uuid.New().String()
	start := time.Now()

	u, err := url.Parse(c.url + "/documentintelligence/documentModels/" + url.PathEscape(modelID) + ":analyze")
	if err != nil {
		return nil, common.WrapError(err, "build url")
	}
	query := u.Query()
	query.Set("api-version", c.apiVersion)
	if len(pages) > 0 {
		query.Set("pages", joinPages(pages))
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(document))
	if err != nil {
		return nil, common.WrapError(err, "build request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.token)

	c.logger.Info("docintel.analyze.request",
		"req_id", reqID,
		"model", modelID,
		"pages", joinPages(pages),
		"content_length", len(document),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("docintel.analyze.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: submit: %v", common.ErrService, err)
	}
	operationURL := resp.Header.Get("Operation-Location")
	if resp.StatusCode != http.StatusAccepted {
		err := convertError(resp)
		c.closeBody(resp.Body, reqID)
		return nil, err
	}
	c.closeBody(resp.Body, reqID)

	if operationURL == "" {
		return nil, fmt.Errorf("%w: missing operation location", common.ErrService)
	}

	op, err := c.poll(ctx, reqID, operationURL)
	if err != nil {
		c.logger.Error("docintel.analyze.failed", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	c.logger.Info("docintel.analyze.ok",
		"req_id", reqID,
		"model", modelID,
		"result_pages", len(op.Result.Pages),
		"tables", len(op.Result.Tables),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &op.Result, nil
}

func (c *Client) poll(ctx context.Context, reqID, operationURL string) (*AnalyzeOperation, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return nil, common.WrapError(err, "build poll request")
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.token)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: poll: %v", common.ErrService, err)
		}
		if resp.StatusCode != http.StatusOK {
			err := convertError(resp)
			c.closeBody(resp.Body, reqID)
			return nil, err
		}

		var op AnalyzeOperation
		err = json.NewDecoder(resp.Body).Decode(&op)
		c.closeBody(resp.Body, reqID)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed response: %v", common.ErrService, err)
		}

		switch op.Status {
		case OperationStatusSucceeded:
			return &op, nil
		case OperationStatusRunning, OperationStatusNotStarted:
			c.logger.Debug("docintel.analyze.pending", "req_id", reqID, "status", op.Status)
		default:
			msg := string(op.Status)
			if op.Error != nil {
				msg = op.Error.Code + ": " + op.Error.Message
			}
			return nil, fmt.Errorf("%w: operation %s", common.ErrService, msg)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) closeBody(body io.ReadCloser, reqID string) {
	if err := body.Close(); err != nil {
		c.logger.Warn("docintel.http.response_body_close_error", "req_id", reqID, "error", err)
	}
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func convertError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error ServiceError `json:"error"`
	}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		return fmt.Errorf("%w: status %d: %s", common.ErrService, resp.StatusCode, envelope.Error.Message)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: %s", common.ErrService, http.StatusText(resp.StatusCode))
	}
	return fmt.Errorf("%w: status %d: %s", common.ErrService, resp.StatusCode, strings.TrimSpace(string(data)))
}

// IsServiceError reports whether err came from the remote service rather than
// from local validation.
func IsServiceError(err error) bool {
	return errors.Is(err, common.ErrService)
}
