package handlers

import (
	"errors"
	"net/http"
	"strings"

	"filepanel/internal/api/middleware"
	"filepanel/internal/apperrors"
	"filepanel/internal/models"
	"filepanel/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth     *services.AuthService
	users    *services.UserService
	sessions *services.SessionService
}

func NewAuthHandler(auth *services.AuthService, users *services.UserService, sessions *services.SessionService) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, sessions: sessions}
}

type SignupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SigninRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup bootstraps the first account. It only ever succeeds once; the
// account it creates is an admin.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if msg, ok := validateAccountInput(req.Username, req.Email, req.Password); !ok {
		c.Error(apperrors.NewGeneral(msg))
		c.Abort()
		return
	}

	token, user, err := h.auth.SignUp(req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSetupComplete):
			c.Error(apperrors.NewGeneral("Setup is already completed. Ask an administrator for an account."))
		case errors.Is(err, services.ErrUsernameTaken), errors.Is(err, services.ErrEmailTaken):
			c.Error(apperrors.NewGeneral(err.Error()))
		default:
			c.Error(err)
		}
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, TokenResponse{Token: token, User: user.Sanitized()})
}

// Signin exchanges credentials for a token plus the signed-in user.
func (h *AuthHandler) Signin(c *gin.Context) {
	var req SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	token, user, err := h.auth.SignIn(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.Error(apperrors.NewAuth("Invalid username or password."))
		} else {
			c.Error(err)
		}
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token, User: user.Sanitized()})
}

// Logout blacklists the presented token. The blacklist is permanent; the
// token never becomes valid again even before its natural expiry.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.ContextTokenKey)

	ok, err := h.sessions.Blacklist(token)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	if !ok {
		c.Error(apperrors.NewGeneral("Failed to logout"))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// LogoutAll blacklists every session of the authenticated user.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserIDKey)

	if err := h.sessions.BlacklistAll(userID); err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out from all devices"})
}

// CheckSetup is public: tells the client whether first-run setup is done.
func (h *AuthHandler) CheckSetup(c *gin.Context) {
	hasUsers, err := h.users.HasUsers()
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"hasUsers": hasUsers})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	user, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		c.Error(apperrors.NewAuth("Authentication required."))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, user.(*models.User).Sanitized())
}

func validateAccountInput(username, email, password string) (string, bool) {
	if len(strings.TrimSpace(username)) < 3 {
		return "Username must be at least 3 characters", false
	}
	if !strings.Contains(email, "@") {
		return "Please include a valid email", false
	}
	if len(password) < 6 {
		return "Please enter a password with 6 or more characters", false
	}
	return "", true
}
