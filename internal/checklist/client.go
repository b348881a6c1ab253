package checklist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnauthorized matches any API error with status 401.
var ErrUnauthorized = errors.New("checklist: unauthorized")

// APIError is returned for responses with status 400 or above.
type APIError struct {
	Status  int
	Path    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
	}
	return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Message)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Fetcher is the read side used by the poller and the UI.
type Fetcher interface {
	FetchDashboard(ctx context.Context) (DashboardStats, error)
	ListMOPs(ctx context.Context, query MOPQuery) (MOPList, error)
	ListServers(ctx context.Context) ([]Server, error)
	AssessmentStatus(ctx context.Context, id int64) (AssessmentStatus, error)
	AssessmentResults(ctx context.Context, id int64) (AssessmentResults, error)
	ListExecutions(ctx context.Context, query HistoryQuery) (HistoryPage, error)
}

// Ensure Client implements Fetcher at compile time.
var _ Fetcher = (*Client)(nil)

// Client talks to the System Checklist HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	logger    *zap.Logger

	mu    sync.RWMutex
	token string
}

const (
	defaultBaseURL   = "http://127.0.0.1:8000"
	defaultUserAgent = "checklist/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 4 << 10
)

// NewClient builds a Client for baseURL. token may be empty until Login.
func NewClient(baseURL, token string, logger *zap.Logger) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
		logger:    logger,
		token:     strings.TrimSpace(token),
	}, nil
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// Login exchanges credentials for a session and keeps its token.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	body := map[string]string{"username": username, "password": password}
	var session Session
	if err := c.do(ctx, http.MethodPost, &url.URL{Path: "/api/auth/login"}, body, &session); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(session.Token) == "" {
		return Session{}, errors.New("login response has no token")
	}
	c.SetToken(session.Token)
	return session, nil
}

// CurrentUser returns the account behind the token.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, &url.URL{Path: "/api/auth/me"}, nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Logout ends the session. The local token is dropped even if the call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetToken("")
	return c.do(ctx, http.MethodPost, &url.URL{Path: "/api/auth/logout"}, nil, nil)
}

// FetchDashboard retrieves the headline counters.
func (c *Client) FetchDashboard(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	if err := c.do(ctx, http.MethodGet, &url.URL{Path: "/api/dashboard/stats"}, nil, &stats); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}

// MOPQuery configures /api/mops requests.
type MOPQuery struct {
	Status   string
	Search   string
	Page     int
	PageSize int
}

// ListMOPs retrieves one page of MOPs.
func (c *Client) ListMOPs(ctx context.Context, query MOPQuery) (MOPList, error) {
	values := url.Values{}
	if status := strings.TrimSpace(query.Status); status != "" {
		values.Set("status", status)
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		values.Set("search", search)
	}
	setPaging(values, query.Page, query.PageSize)

	var payload MOPList
	rel := &url.URL{Path: "/api/mops", RawQuery: values.Encode()}
	if err := c.do(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return MOPList{}, err
	}
	return payload, nil
}

// ReviewMOP records an approve or reject decision.
func (c *Client) ReviewMOP(ctx context.Context, id int64, decision, comment string) error {
	if id <= 0 {
		return errors.New("mop id required")
	}
	switch decision {
	case DecisionApprove, DecisionReject:
	default:
		return fmt.Errorf("unknown review decision %q", decision)
	}
	body := map[string]string{"action": decision, "comment": strings.TrimSpace(comment)}
	rel := &url.URL{Path: "/api/mops/" + strconv.FormatInt(id, 10) + "/review"}
	return c.do(ctx, http.MethodPost, rel, body, nil)
}

// ListServers retrieves every configured server.
func (c *Client) ListServers(ctx context.Context) ([]Server, error) {
	var servers []Server
	if err := c.do(ctx, http.MethodGet, &url.URL{Path: "/api/servers"}, nil, &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// StartAssessment runs a MOP on servers and returns the assessment id.
func (c *Client) StartAssessment(ctx context.Context, req AssessmentRequest) (int64, error) {
	if req.MOPID <= 0 || len(req.ServerIDs) == 0 {
		return 0, errors.New("mop id and at least one server required")
	}
	var payload struct {
		AssessmentID int64 `json:"assessment_id"`
	}
	if err := c.do(ctx, http.MethodPost, &url.URL{Path: "/api/assessments/execute"}, req, &payload); err != nil {
		return 0, err
	}
	return payload.AssessmentID, nil
}

// AssessmentStatus retrieves progress of a running assessment.
func (c *Client) AssessmentStatus(ctx context.Context, id int64) (AssessmentStatus, error) {
	var status AssessmentStatus
	if err := c.do(ctx, http.MethodGet, assessmentPath(id, "status"), nil, &status); err != nil {
		return AssessmentStatus{}, err
	}
	return status, nil
}

// AssessmentResults retrieves per-command results.
func (c *Client) AssessmentResults(ctx context.Context, id int64) (AssessmentResults, error) {
	var results AssessmentResults
	if err := c.do(ctx, http.MethodGet, assessmentPath(id, "results"), nil, &results); err != nil {
		return AssessmentResults{}, err
	}
	return results, nil
}

// HistoryQuery configures /api/executions/history requests.
type HistoryQuery struct {
	Status   string
	MOPID    int64
	Page     int
	PageSize int
}

// ListExecutions retrieves one page of past runs, newest first.
func (c *Client) ListExecutions(ctx context.Context, query HistoryQuery) (HistoryPage, error) {
	values := url.Values{}
	if status := strings.TrimSpace(query.Status); status != "" {
		values.Set("status", status)
	}
	if query.MOPID > 0 {
		values.Set("mop_id", strconv.FormatInt(query.MOPID, 10))
	}
	setPaging(values, query.Page, query.PageSize)

	var payload HistoryPage
	rel := &url.URL{Path: "/api/executions/history", RawQuery: values.Encode()}
	if err := c.do(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return HistoryPage{}, err
	}
	return payload, nil
}

func setPaging(values url.Values, page, pageSize int) {
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		values.Set("page_size", strconv.Itoa(pageSize))
	}
}

func assessmentPath(id int64, leaf string) *url.URL {
	return &url.URL{Path: "/api/assessments/" + strconv.FormatInt(id, 10) + "/" + leaf}
}

func (c *Client) do(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", rel.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Path: rel.Path, Message: errorMessage(resp.Body)}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts a human message from an error body. The backend
// uses "detail"; other proxies use "message" or "error".
func errorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if detail, ok := payload.Detail.(string); ok && detail != "" {
			return detail
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api url %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
