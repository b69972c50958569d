package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/infra/security"
	"github.com/pucco93/ebsi-access-control/internal/usecase"
)

// UserCommands is the user dispatcher surface used over HTTP.
type UserCommands interface {
	Refresh(ctx context.Context) error
	RefreshDIDs(ctx context.Context) error
	Find(ctx context.Context, did string) (*domain.User, error)
	Create(ctx context.Context, form domain.UserForm) (usecase.CreateUserResult, error)
	Delete(ctx context.Context, did string) error
	Update(ctx context.Context, user domain.User, desired []domain.ResourceRole) (usecase.UpdateResult, error)
	ListUserRoles(ctx context.Context, did string) (domain.UserInView, error)
}

// KeyGenerator produces a one-shot key pair for a new user.
type KeyGenerator func() (*security.KeyPair, error)

// UserHandler serves the user and key endpoints.
type UserHandler struct {
	state  StateReader
	users  UserCommands
	keygen KeyGenerator
}

// NewUserHandler builds a UserHandler. A nil keygen uses security.GenerateKeyPair.
func NewUserHandler(state StateReader, users UserCommands, keygen KeyGenerator) *UserHandler {
	if keygen == nil {
		keygen = security.GenerateKeyPair
	}
	return &UserHandler{state: state, users: users, keygen: keygen}
}

// RegisterRoutes attaches the user endpoints to r.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	users.GET("", h.ListUsers)
	users.POST("", h.CreateUser)
	users.GET("/:did", h.GetUser)
	users.DELETE("/:did", h.DeleteUser)
	users.PUT("/:did/resources", h.UpdateResources)
	users.GET("/:did/roles", h.ListRoles)

	r.POST("/keys", h.GenerateKeys)
}

// ListUsers refreshes and returns the user collection.
func (h *UserHandler) ListUsers(c *gin.Context) {
	if err := refreshAll(c.Request.Context(), h.users.Refresh, h.users.RefreshDIDs); err != nil {
		respondConsoleError(c, err, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, h.state.Snapshot().Users)
}

// GetUser looks a user up by DID or bare method-specific id.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.users.Find(c.Request.Context(), c.Param("did"))
	if err != nil {
		respondConsoleError(c, err, "failed to read user")
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "no user found for that ebsiDID"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateUser derives the DID from the submitted public key and registers it.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var form domain.UserForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid user payload"))
		return
	}
	if form.PublicKey == nil {
		respondConsoleError(c, &domain.ValidationError{Field: "publicKey", Reason: "is required"}, "invalid user")
		return
	}

	result, err := h.users.Create(c.Request.Context(), form)
	if err != nil {
		// The user itself may be registered even when associations failed.
		if result.EbsiDID != "" {
			c.Header("X-Ebsi-DID", result.EbsiDID)
		}
		respondConsoleError(c, err, "failed to create user")
		return
	}
	c.JSON(http.StatusAccepted, CreateUserResponse{EbsiDID: result.EbsiDID, Associations: result.Associations})
}

// DeleteUser submits the removal of a user.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("did")); err != nil {
		respondConsoleError(c, err, "failed to delete user")
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Message: "user deletion submitted"})
}

// UpdateResources reconciles the user's resource roles with the request.
func (h *UserHandler) UpdateResources(c *gin.Context) {
	did := strings.TrimSpace(c.Param("did"))
	var req UpdateUserResourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid resources payload"))
		return
	}

	user := domain.User{EbsiDID: did, Resources: req.Resources}
	if req.Resources == nil {
		current, err := h.currentUser(c.Request.Context(), did)
		if err != nil {
			respondConsoleError(c, err, "failed to read user")
			return
		}
		if current == nil {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "no user found for that ebsiDID"))
			return
		}
		user = *current
	}

	result, err := h.users.Update(c.Request.Context(), user, req.ResourceRoles)
	if err != nil {
		respondConsoleError(c, err, "failed to update user")
		return
	}
	c.JSON(http.StatusAccepted, UpdateUserResourcesResponse{Added: result.Added, Removed: result.Removed})
}

// currentUser returns the cached user with did, reading it from the ledger
// when the collection does not hold it.
func (h *UserHandler) currentUser(ctx context.Context, did string) (*domain.User, error) {
	for _, u := range h.state.Snapshot().Users.Items {
		if u.EbsiDID == did {
			return &u, nil
		}
	}
	return h.users.Find(ctx, did)
}

// ListRoles returns the resource-role breakdown of a user.
func (h *UserHandler) ListRoles(c *gin.Context) {
	view, err := h.users.ListUserRoles(c.Request.Context(), c.Param("did"))
	if err != nil {
		respondConsoleError(c, err, "failed to read user roles")
		return
	}
	c.JSON(http.StatusOK, view)
}

// GenerateKeys returns a fresh key pair. The private key is never stored.
func (h *UserHandler) GenerateKeys(c *gin.Context) {
	pair, err := h.keygen()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to generate key pair"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, pair)
}
