package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

const defaultHistoryLimit = 50

// StateReader gives presentation read access to the console state.
type StateReader interface {
	Snapshot() domain.Snapshot
	ConsumeOutcomes() domain.OutcomeSet
}

// AccountCommands manages the connected account.
type AccountCommands interface {
	Connect(ctx context.Context, account string) error
	Disconnect(ctx context.Context) error
	ResolveSelfDID(ctx context.Context) (string, error)
}

// ConsoleHandler serves account, snapshot and outcome endpoints.
type ConsoleHandler struct {
	state    StateReader
	accounts AccountCommands
	history  port.OutcomeHistory
}

// NewConsoleHandler builds a ConsoleHandler. history may be nil.
func NewConsoleHandler(state StateReader, accounts AccountCommands, history port.OutcomeHistory) *ConsoleHandler {
	return &ConsoleHandler{state: state, accounts: accounts, history: history}
}

// RegisterRoutes attaches the console endpoints to r.
func (h *ConsoleHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/state", h.Snapshot)
	r.POST("/outcomes/consume", h.ConsumeOutcomes)
	r.GET("/outcomes/history", h.History)

	account := r.Group("/account")
	account.GET("", h.Account)
	account.POST("/connect", h.Connect)
	account.POST("/disconnect", h.Disconnect)
}

// Snapshot returns a deep copy of the console state.
func (h *ConsoleHandler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.state.Snapshot())
}

// ConsumeOutcomes returns the pending outcomes and resets them.
func (h *ConsoleHandler) ConsumeOutcomes(c *gin.Context) {
	c.JSON(http.StatusOK, h.state.ConsumeOutcomes())
}

// History lists recorded outcomes from the audit store.
func (h *ConsoleHandler) History(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotImplemented, NewErrorResponse(c, "outcome history is disabled"))
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	records, err := h.history.ListRecent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to read outcome history"))
		return
	}
	if records == nil {
		records = []domain.OutcomeRecord{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Outcomes: records})
}

// Account reports the connected account and resolves its DID. An
// unregistered account answers with an empty DID.
func (h *ConsoleHandler) Account(c *gin.Context) {
	snapshot := h.state.Snapshot()
	resp := AccountResponse{Account: snapshot.ConnectedAccount, EbsiDID: snapshot.CurrentUserDID}
	if resp.Account == "" {
		c.JSON(http.StatusOK, resp)
		return
	}

	did, err := h.accounts.ResolveSelfDID(c.Request.Context())
	if err != nil && !errors.Is(err, domain.ErrLedgerCall) {
		respondConsoleError(c, err, "failed to resolve account")
		return
	}
	resp.EbsiDID = did
	c.JSON(http.StatusOK, resp)
}

// Connect selects the signing account.
func (h *ConsoleHandler) Connect(c *gin.Context) {
	var req ConnectAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid account payload"))
		return
	}
	if err := h.accounts.Connect(c.Request.Context(), req.Account); err != nil {
		respondConsoleError(c, err, "failed to connect account")
		return
	}
	c.JSON(http.StatusOK, AccountResponse{Account: h.state.Snapshot().ConnectedAccount})
}

// Disconnect forgets the connected account.
func (h *ConsoleHandler) Disconnect(c *gin.Context) {
	if err := h.accounts.Disconnect(c.Request.Context()); err != nil {
		respondConsoleError(c, err, "failed to disconnect account")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "disconnected"})
}
