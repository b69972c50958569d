package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness check results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ConnectAccountRequest selects the signing account.
type ConnectAccountRequest struct {
	Account string `json:"account" binding:"required"`
}

// AccountResponse reports the connected account and its resolved DID.
type AccountResponse struct {
	Account string `json:"account"`
	EbsiDID string `json:"ebsiDID"`
}

// NameRequest carries the name of a permission or resource to create.
type NameRequest struct {
	Name string `json:"name"`
}

// CreateRoleRequest carries a role name and its permission names.
type CreateRoleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// BlacklistRequest replaces a resource blacklist.
type BlacklistRequest struct {
	Users []string `json:"users"`
}

// CreateUserResponse reports the DID derived for a created user.
type CreateUserResponse struct {
	EbsiDID      string `json:"ebsiDID"`
	Associations int    `json:"associations"`
}

// UpdateUserResourcesRequest carries the desired resource roles. Resources
// lists the user's current resource names; when omitted the console state is
// used.
type UpdateUserResourcesRequest struct {
	Resources     []string              `json:"resources"`
	ResourceRoles []domain.ResourceRole `json:"resourceRoles"`
}

// UpdateUserResourcesResponse counts the association calls submitted.
type UpdateUserResourcesResponse struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// HistoryResponse lists recorded outcomes, newest first.
type HistoryResponse struct {
	Outcomes []domain.OutcomeRecord `json:"outcomes"`
}
