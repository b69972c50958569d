package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
)

// PermissionCommands is the permission dispatcher surface used over HTTP.
type PermissionCommands interface {
	Refresh(ctx context.Context) error
	RefreshHashes(ctx context.Context) error
	Find(ctx context.Context, name string) (*domain.Permission, error)
	Create(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
}

// RoleCommands is the role dispatcher surface used over HTTP.
type RoleCommands interface {
	Refresh(ctx context.Context) error
	RefreshHashes(ctx context.Context) error
	Find(ctx context.Context, name string) (*domain.Role, error)
	Create(ctx context.Context, name string, permissions []string) error
	Delete(ctx context.Context, name string) error
}

// ResourceCommands is the resource dispatcher surface used over HTTP.
type ResourceCommands interface {
	Refresh(ctx context.Context) error
	RefreshHashes(ctx context.Context) error
	Find(ctx context.Context, name string) (*domain.Resource, error)
	Create(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	UpdateBlacklist(ctx context.Context, resource string, users []string) error
}

// EntityHandler serves the permission, role and resource endpoints.
type EntityHandler struct {
	state       StateReader
	permissions PermissionCommands
	roles       RoleCommands
	resources   ResourceCommands
}

// NewEntityHandler builds an EntityHandler.
func NewEntityHandler(state StateReader, permissions PermissionCommands, roles RoleCommands, resources ResourceCommands) *EntityHandler {
	return &EntityHandler{state: state, permissions: permissions, roles: roles, resources: resources}
}

// RegisterRoutes attaches the entity endpoints to r.
func (h *EntityHandler) RegisterRoutes(r *gin.RouterGroup) {
	permissions := r.Group("/permissions")
	permissions.GET("", h.ListPermissions)
	permissions.POST("", h.CreatePermission)
	permissions.GET("/:name", h.GetPermission)
	permissions.DELETE("/:name", h.DeletePermission)

	roles := r.Group("/roles")
	roles.GET("", h.ListRoles)
	roles.POST("", h.CreateRole)
	roles.GET("/:name", h.GetRole)
	roles.DELETE("/:name", h.DeleteRole)

	resources := r.Group("/resources")
	resources.GET("", h.ListResources)
	resources.POST("", h.CreateResource)
	resources.GET("/:name", h.GetResource)
	resources.DELETE("/:name", h.DeleteResource)
	resources.PUT("/:name/blacklist", h.UpdateBlacklist)
}

// refreshAll runs the collection read and then the identifier list read, so
// a later delete submits an up-to-date remaining list.
func refreshAll(ctx context.Context, refresh, hashes func(context.Context) error) error {
	if err := refresh(ctx); err != nil {
		return err
	}
	return hashes(ctx)
}

// ListPermissions refreshes and returns the permission collection.
func (h *EntityHandler) ListPermissions(c *gin.Context) {
	if err := refreshAll(c.Request.Context(), h.permissions.Refresh, h.permissions.RefreshHashes); err != nil {
		respondConsoleError(c, err, "failed to list permissions")
		return
	}
	c.JSON(http.StatusOK, h.state.Snapshot().Permissions)
}

// GetPermission looks a permission up by name.
func (h *EntityHandler) GetPermission(c *gin.Context) {
	name := c.Param("name")
	if err := domain.ValidateName("name", name); err != nil {
		respondConsoleError(c, err, "invalid name")
		return
	}
	permission, err := h.permissions.Find(c.Request.Context(), name)
	if err != nil {
		respondConsoleError(c, err, "failed to read permission")
		return
	}
	if permission == nil {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "permission not found"))
		return
	}
	c.JSON(http.StatusOK, permission)
}

// CreatePermission submits a custom permission.
func (h *EntityHandler) CreatePermission(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid permission payload"))
		return
	}
	if err := domain.ValidateName("name", req.Name); err != nil {
		respondConsoleError(c, err, "invalid name")
		return
	}
	if err := h.permissions.Create(c.Request.Context(), req.Name); err != nil {
		respondConsoleError(c, err, "failed to create permission")
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Message: "permission submitted"})
}

// DeletePermission submits the removal of a custom permission.
func (h *EntityHandler) DeletePermission(c *gin.Context) {
	name := c.Param("name")
	if err := domain.ValidateName("name", name); err != nil {
		respondConsoleError(c, err, "invalid name")
		return
	}
	if err := h.permissions.Delete(c.Request.Context(), name); err != nil {
		respondConsoleError(c, err, "failed to delete permission")
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Message: "permission deletion submitted"})
}

// ListRoles refreshes and returns the role collection.
func (h *EntityHandler) ListRoles(c *gin.Context) {
	if err := refreshAll(c.Request.Context(), h.roles.Refresh, h.roles.RefreshHashes); err != nil {
		respondConsoleError(c, err, "failed to list roles")
		return
	}
	c.JSON(http.StatusOK, h.state.Snapshot().Roles)
}

// GetRole looks a role up by name.
func (h *EntityHandler) GetRole(c *gin.Context) {
	name := c.Param("name")
	if err := domain.ValidateName("name", name); err != nil {
		respondConsoleError(c, err, "invalid name")
		return
	}
	role, err := h.roles.Find(c.Request.Context(), name)
	if err != nil {
		respondConsoleError(c, err, "failed to read role")
		return
	}
	if role == nil {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "role not found"))
		return
	}
	c.JSON(http.StatusOK, role)
}

// CreateRole submits a custom role with its permissions.
func (h *EntityHandler) CreateRole(c *gin.Context) {
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}
	if err := domain.ValidateName("name", req.Name); err != nil {
		respondConsoleError(c, err, "invalid name")
		return
	}
	for _, p := range req.Permissions {
		if err := domain.ValidateName("permissions", p); err != nil {
			respondConsoleError(c, err, "invalid permission")
			return
		}
	}
	if err := h.roles.Create(c.Request.Context(), req.Name, req.Permissions); err != nil {
		respondConsoleError(c, err, "failed to create role")
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Message: "role submitted"})
}

// DeleteRole submits the removal of a custom role.
func (h *EntityHandler) DeleteRole(c *gin.Context) {
	name := c.Param("name")
	if err := domain.ValidateName("name", name); err != nil {
		respondConsoleError(c, err, "invalid name")
		return
	}
	if err := h.roles.Delete(c.Request.Context(), name); err != nil {
		respondConsoleError(c, err, "failed to delete role")
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Message: "role deletion submitted"})
}

// ListResources refreshes and returns the resource collection.
func (h *EntityHandler) ListResources(c *gin.Context) {
	if err := refreshAll(c.Request.Context(), h.resources.Refresh, h.resources.RefreshHashes); err != nil {
		respondConsoleError(c, err, "failed to list resources")
		return
	}
	c.JSON(http.StatusOK, h.state.Snapshot().Resources)
}

// GetResource looks a resource up by name.
func (h *EntityHandler) GetResource(c *gin.Context) {
	name := c.Param("name")
	if err := domain.ValidateName("name", name); err != nil {
		respondConsoleError(c, err, "invalid name")
		return
	}
	resource, err := h.resources.Find(c.Request.Context(), name)
	if err != nil {
		respondConsoleError(c, err, "failed to read resource")
		return
	}
	if resource == nil {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "resource not found"))
		return
	}
	c.JSON(http.StatusOK, resource)
}

// CreateResource submits a resource owned by the connected identity.
func (h *EntityHandler) CreateResource(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid resource payload"))
		return
	}
	if err := domain.ValidateName("name", req.Name); err != nil {
		respondConsoleError(c, err, "invalid name")
		return
	}
	if err := h.resources.Create(c.Request.Context(), req.Name); err != nil {
		respondConsoleError(c, err, "failed to create resource")
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Message: "resource submitted"})
}

// DeleteResource submits the removal of a resource.
func (h *EntityHandler) DeleteResource(c *gin.Context) {
	name := c.Param("name")
	if err := domain.ValidateName("name", name); err != nil {
		respondConsoleError(c, err, "invalid name")
		return
	}
	if err := h.resources.Delete(c.Request.Context(), name); err != nil {
		respondConsoleError(c, err, "failed to delete resource")
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Message: "resource deletion submitted"})
}

// UpdateBlacklist replaces the blacklist of a resource. Duplicate entries are
// rejected rather than silently merged.
func (h *EntityHandler) UpdateBlacklist(c *gin.Context) {
	name := c.Param("name")
	if err := domain.ValidateName("name", name); err != nil {
		respondConsoleError(c, err, "invalid name")
		return
	}
	var req BlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid blacklist payload"))
		return
	}
	seen := make(map[string]struct{}, len(req.Users))
	for _, u := range req.Users {
		u = strings.TrimSpace(u)
		if _, dup := seen[u]; dup {
			respondConsoleError(c, &domain.ValidationError{Field: "users", Reason: "contains duplicates"}, "invalid blacklist")
			return
		}
		seen[u] = struct{}{}
	}
	if err := h.resources.UpdateBlacklist(c.Request.Context(), name, req.Users); err != nil {
		respondConsoleError(c, err, "failed to update blacklist")
		return
	}
	c.JSON(http.StatusAccepted, MessageResponse{Message: "blacklist update submitted"})
}
