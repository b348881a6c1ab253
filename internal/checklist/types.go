package checklist

import (
	"strings"
	"time"
)

const backendTimestampLayout = "2006-01-02 15:04:05"

// Session is returned by a successful login.
type Session struct {
	Token     string `json:"access_token"`
	TokenType string `json:"token_type"`
	User      User   `json:"user"`
}

// User describes the authenticated account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// IsAdmin reports whether the user may review MOPs.
func (u User) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(u.Role), "admin")
}

// DashboardStats mirrors /api/dashboard/stats.
type DashboardStats struct {
	TotalMOPs        int     `json:"total_mops"`
	PendingReview    int     `json:"pending_review"`
	ApprovedMOPs     int     `json:"approved_mops"`
	TotalServers     int     `json:"total_servers"`
	ActiveServers    int     `json:"active_servers"`
	RecentExecutions int     `json:"recent_executions"`
	SuccessRate      float64 `json:"success_rate"`
	LastExecution    string  `json:"last_execution"`
}

// ParsedLastExecution returns the last execution time, or zero if unknown.
func (d DashboardStats) ParsedLastExecution() time.Time {
	return parseTime(d.LastExecution)
}

// MOP is a method of procedure: an ordered list of commands to run against
// servers.
type MOP struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Status      string       `json:"status"`
	Author      string       `json:"author"`
	Commands    []MOPCommand `json:"commands"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
}

// ParsedUpdatedAt returns the last update time, or zero if unknown.
func (m MOP) ParsedUpdatedAt() time.Time {
	return parseTime(m.UpdatedAt)
}

// NeedsReview reports whether the MOP is waiting for an admin decision.
func (m MOP) NeedsReview() bool {
	return strings.EqualFold(strings.TrimSpace(m.Status), "pending_review")
}

// MOPCommand is one step of a MOP.
type MOPCommand struct {
	ID             int64  `json:"id"`
	Order          int    `json:"order"`
	Title          string `json:"title"`
	Command        string `json:"command"`
	ExpectedOutput string `json:"expected_output"`
	Description    string `json:"description"`
}

// MOPList mirrors /api/mops.
type MOPList struct {
	Items    []MOP `json:"items"`
	Total    int   `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// Review decisions accepted by ReviewMOP.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Server is an execution target.
type Server struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

// AssessmentRequest starts running a MOP on a set of servers.
type AssessmentRequest struct {
	MOPID     int64   `json:"mop_id"`
	ServerIDs []int64 `json:"server_ids"`
}

// AssessmentStatus mirrors /api/assessments/{id}/status.
type AssessmentStatus struct {
	ID         int64   `json:"id"`
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"`
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	StartedAt  string  `json:"started_at"`
	FinishedAt string  `json:"finished_at"`
}

// Done reports whether the assessment reached a terminal state.
func (s AssessmentStatus) Done() bool {
	switch strings.ToLower(strings.TrimSpace(s.Status)) {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}

// AssessmentResult is one command run on one server. The backend does not
// always fill Status, so ExitCode is a pointer to tell "0" from "missing".
type AssessmentResult struct {
	ServerID       int64   `json:"server_id"`
	ServerName     string  `json:"server_name"`
	Host           string  `json:"host"`
	CommandID      int64   `json:"command_id"`
	Title          string  `json:"title"`
	Command        string  `json:"command"`
	ExpectedOutput string  `json:"expected_output"`
	Output         string  `json:"output"`
	Error          string  `json:"error"`
	ExitCode       *int    `json:"exit_code"`
	Status         string  `json:"status"`
	DurationMS     float64 `json:"duration_ms"`
}

// Duration returns how long the command ran.
func (r AssessmentResult) Duration() time.Duration {
	return time.Duration(r.DurationMS * float64(time.Millisecond))
}

// AssessmentResults mirrors /api/assessments/{id}/results.
type AssessmentResults struct {
	AssessmentID int64              `json:"assessment_id"`
	MOPTitle     string             `json:"mop_title"`
	Results      []AssessmentResult `json:"results"`
}

// Execution is a past assessment run.
type Execution struct {
	ID          int64  `json:"id"`
	MOPID       int64  `json:"mop_id"`
	MOPTitle    string `json:"mop_title"`
	Status      string `json:"status"`
	ServerCount int    `json:"server_count"`
	PassCount   int    `json:"pass_count"`
	FailCount   int    `json:"fail_count"`
	ExecutedBy  string `json:"executed_by"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at"`
}

// ParsedStartedAt returns the start time, or zero if unknown.
func (e Execution) ParsedStartedAt() time.Time {
	return parseTime(e.StartedAt)
}

// Elapsed returns the run duration, or zero while it is still running.
func (e Execution) Elapsed() time.Duration {
	start, end := parseTime(e.StartedAt), parseTime(e.CompletedAt)
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

// HistoryPage mirrors /api/executions/history.
type HistoryPage struct {
	Items    []Execution `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(backendTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
