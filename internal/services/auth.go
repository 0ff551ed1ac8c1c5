package services

import (
	"errors"
	"fmt"
	"time"

	"filepanel/internal/config"
	"filepanel/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSetupComplete      = errors.New("setup already completed")
)

// AuthClaims is the signed token payload: enough to identify the caller
// without a store round-trip, though the request gate re-resolves the user
// anyway so a deleted or disabled account fails closed.
type AuthClaims struct {
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService orchestrates signup, signin and token issue/verify on top of
// the identity and session registries.
type AuthService struct {
	cfg      *config.Config
	users    *UserService
	sessions *SessionService
}

func NewAuthService(cfg *config.Config, users *UserService, sessions *SessionService) *AuthService {
	return &AuthService{cfg: cfg, users: users, sessions: sessions}
}

// SignUp is first-run bootstrap only: it creates the initial admin account
// and signs it in. Once any user exists it fails with ErrSetupComplete;
// further accounts are admin-issued.
func (s *AuthService) SignUp(username, email, password string) (string, *models.User, error) {
	hasUsers, err := s.users.HasUsers()
	if err != nil {
		return "", nil, err
	}
	if hasUsers {
		return "", nil, ErrSetupComplete
	}

	// The first user is always an admin, whatever role was asked for.
	user, err := s.users.Create(CreateUserParams{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return "", nil, err
	}

	token, err := s.openSession(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// SignIn verifies credentials and opens a new session. Missing users,
// disabled accounts and wrong passwords are indistinguishable to the caller.
func (s *AuthService) SignIn(username, password string) (string, *models.User, error) {
	user, err := s.users.FindByUsername(username)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !user.IsActive {
		return "", nil, ErrInvalidCredentials
	}
	if !s.users.VerifyPassword(user, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.openSession(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) openSession(user *models.User) (string, error) {
	token, err := s.GenerateToken(user)
	if err != nil {
		return "", err
	}
	if _, err := s.sessions.Create(user.ID, token, s.cfg.Security.SessionLifetime); err != nil {
		return "", err
	}
	if err := s.users.UpdateLastLogin(user.ID); err != nil {
		return "", err
	}
	return token, nil
}

// GenerateToken signs an HS256 JWT whose expiry mirrors the session
// lifetime.
func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := AuthClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			// A unique jti keeps two logins in the same second from
			// minting the same token, which is also the session key.
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.Security.SessionLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.JWT.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.Secret))
}

// VerifyToken checks the signature and decodes the claims. Every failure
// mode (bad signature, expiry, malformed claims) collapses into one error.
func (s *AuthService) VerifyToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}
