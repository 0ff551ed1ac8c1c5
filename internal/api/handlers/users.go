package handlers

import (
	"errors"
	"net/http"

	"filepanel/internal/api/middleware"
	"filepanel/internal/apperrors"
	"filepanel/internal/models"
	"filepanel/internal/services"

	"github.com/gin-gonic/gin"
)

// UsersHandler serves the admin-only user management routes.
type UsersHandler struct {
	users    *services.UserService
	sessions *services.SessionService
}

func NewUsersHandler(users *services.UserService, sessions *services.SessionService) *UsersHandler {
	return &UsersHandler{users: users, sessions: sessions}
}

type CreateUserRequest struct {
	Username    string                   `json:"username" binding:"required"`
	Email       string                   `json:"email" binding:"required"`
	Password    string                   `json:"password" binding:"required"`
	Role        models.Role              `json:"role" binding:"required"`
	Permissions *models.PermissionsPatch `json:"permissions"`
}

type UpdateUserRequest struct {
	Email       *string                  `json:"email"`
	Password    *string                  `json:"password"`
	Role        *models.Role             `json:"role"`
	IsActive    *bool                    `json:"isActive"`
	Permissions *models.PermissionsPatch `json:"permissions"`
}

// List returns every account, sanitized.
func (h *UsersHandler) List(c *gin.Context) {
	users, err := h.users.List()
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	sanitized := make([]*models.User, 0, len(users))
	for _, u := range users {
		sanitized = append(sanitized, u.Sanitized())
	}
	c.JSON(http.StatusOK, gin.H{"users": sanitized})
}

// Create mints a new account on behalf of the requesting admin.
func (h *UsersHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if msg, ok := validateAccountInput(req.Username, req.Email, req.Password); !ok {
		c.Error(apperrors.NewGeneral(msg))
		c.Abort()
		return
	}
	if !models.ValidRole(req.Role) {
		c.Error(apperrors.NewGeneral("Role must be either 'admin' or 'user'"))
		c.Abort()
		return
	}

	user, err := h.users.Create(services.CreateUserParams{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		Permissions: req.Permissions,
		CreatedBy:   c.GetString(middleware.ContextUserIDKey),
	})
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) || errors.Is(err, services.ErrEmailTaken) {
			c.Error(apperrors.NewGeneral(err.Error()))
		} else {
			c.Error(err)
		}
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, user.Sanitized())
}

// Update patches an account. Permissions merge onto the existing set.
func (h *UsersHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	user, err := h.users.Update(id, services.UpdateUserParams{
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		IsActive:    req.IsActive,
		Permissions: req.Permissions,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			c.Error(apperrors.NewGeneral(err.Error()))
		} else {
			c.Error(err)
		}
		c.Abort()
		return
	}
	if user == nil {
		c.Error(apperrors.NewNotFound("User not found"))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, user.Sanitized())
}

// Delete removes an account and logs it out everywhere. Admins cannot
// delete themselves.
func (h *UsersHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if id == c.GetString(middleware.ContextUserIDKey) {
		c.Error(apperrors.NewGeneral("Cannot delete your own account"))
		c.Abort()
		return
	}

	ok, err := h.users.Delete(id)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	if !ok {
		c.Error(apperrors.NewNotFound("User not found"))
		c.Abort()
		return
	}

	// A deleted user's open sessions must not outlive the account.
	if err := h.sessions.BlacklistAll(id); err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully deleted user"})
}

// PermissionsTemplate returns the default permission set for new regular
// users, for the admin UI's permission editor.
func (h *UsersHandler) PermissionsTemplate(c *gin.Context) {
	c.JSON(http.StatusOK, models.DefaultUserPermissions())
}
