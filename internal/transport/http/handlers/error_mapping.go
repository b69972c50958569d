package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// An empty Message echoes the error text.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// consoleErrorCases is the console error taxonomy.
var consoleErrorCases = []ErrorCase{
	{Err: domain.ErrValidation, Status: http.StatusBadRequest},
	{Err: domain.ErrAuthorizationDeclined, Status: http.StatusForbidden, Message: "user rejected transaction"},
	{Err: domain.ErrRequesterUnregistered, Status: http.StatusConflict, Message: "current user cannot create resources, register it before using app"},
	{Err: domain.ErrNotConnected, Status: http.StatusConflict, Message: "no connected account"},
	{Err: domain.ErrLedgerCall, Status: http.StatusBadGateway, Message: "ledger call failed"},
	{Err: domain.ErrEventListenerInit, Status: http.StatusServiceUnavailable, Message: "event listener unavailable"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}
	_ = c.Error(err)

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			msg := cs.Message
			if msg == "" {
				msg = err.Error()
			}
			c.JSON(cs.Status, NewErrorResponse(c, msg))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// respondConsoleError maps err with the console taxonomy.
func respondConsoleError(c *gin.Context, err error, fallbackMessage string) {
	RespondWithMappedError(c, err, consoleErrorCases, http.StatusInternalServerError, fallbackMessage)
}
