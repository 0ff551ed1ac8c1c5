package services

import (
	"testing"

	"filepanel/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(t *testing.T) (*AuthService, *UserService, *SessionService) {
	t.Helper()
	st := newTestStore(t)
	cfg := newTestConfig()
	users := NewUserService(st, cfg.Security.BcryptCost)
	sessions := NewSessionService(st)
	return NewAuthService(cfg, users, sessions), users, sessions
}

func TestSignUpBootstrapsFirstAdmin(t *testing.T) {
	auth, users, sessions := newTestAuthService(t)

	token, user, err := auth.SignUp("alice", "a@x.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// The first account is an admin no matter what.
	assert.Equal(t, models.RoleAdmin, user.Role)

	hasUsers, err := users.HasUsers()
	require.NoError(t, err)
	assert.True(t, hasUsers)

	// Signup also opened a session for the new admin.
	ok, err := sessions.IsValid(token)
	require.NoError(t, err)
	assert.True(t, ok)

	// And stamped the login time.
	got, err := users.FindByID(user.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLogin)
}

func TestSignUpRejectedOnceInitialized(t *testing.T) {
	auth, _, _ := newTestAuthService(t)

	_, _, err := auth.SignUp("alice", "a@x.com", "secret1")
	require.NoError(t, err)

	_, _, err = auth.SignUp("bob", "b@x.com", "secret2")
	assert.ErrorIs(t, err, ErrSetupComplete)
}

func TestSignIn(t *testing.T) {
	auth, users, sessions := newTestAuthService(t)

	_, created, err := auth.SignUp("alice", "a@x.com", "secret1")
	require.NoError(t, err)

	token, user, err := auth.SignIn("alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	ok, err := sessions.IsValid(token)
	require.NoError(t, err)
	assert.True(t, ok)

	// Each login is its own session.
	list, err := sessions.ListForUser(user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Wrong password and unknown user are the same error.
	_, _, err = auth.SignIn("alice", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = auth.SignIn("ghost", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Disabled accounts cannot authenticate.
	inactive := false
	_, err = users.Update(user.ID, UpdateUserParams{IsActive: &inactive})
	require.NoError(t, err)

	_, _, err = auth.SignIn("alice", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	auth, _, _ := newTestAuthService(t)

	_, user, err := auth.SignUp("alice", "a@x.com", "secret1")
	require.NoError(t, err)

	token, err := auth.GenerateToken(user)
	require.NoError(t, err)

	claims, err := auth.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestVerifyTokenRejectsTampering(t *testing.T) {
	auth, _, _ := newTestAuthService(t)

	_, user, err := auth.SignUp("alice", "a@x.com", "secret1")
	require.NoError(t, err)

	token, err := auth.GenerateToken(user)
	require.NoError(t, err)

	_, err = auth.VerifyToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.VerifyToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
