package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filepanel/internal/config"
	"filepanel/internal/files"
	"filepanel/internal/models"
	"filepanel/internal/services"
	"filepanel/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router   *gin.Engine
	users    *services.UserService
	sessions *services.SessionService
	auth     *services.AuthService
	filesDir string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret: "test-secret-key-for-testing-only",
			Issuer: "filepanel-test",
		},
		Security: config.SecurityConfig{
			BcryptCost:      4,
			SessionLifetime: time.Hour,
			SweepInterval:   time.Hour,
		},
	}

	users := services.NewUserService(st, cfg.Security.BcryptCost)
	sessions := services.NewSessionService(st)
	auth := services.NewAuthService(cfg, users, sessions)

	filesDir := t.TempDir()
	manager, err := files.NewDiskManager(filesDir)
	require.NoError(t, err)

	r := gin.New()
	SetupRoutes(r, Deps{
		Cfg:      cfg,
		Users:    users,
		Sessions: sessions,
		Auth:     auth,
		Files:    manager,
	})

	return &testEnv{router: r, users: users, sessions: sessions, auth: auth, filesDir: filesDir}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// bootstrap runs the first-user signup and returns the admin token and user.
func (e *testEnv) bootstrap(t *testing.T) (string, *models.User) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"username": "alice",
		"email":    "a@x.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	decode(t, w, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User
}

func TestFirstSignupBecomesAdminAndSecondIsRejected(t *testing.T) {
	env := setupTestEnv(t)

	// Fresh install: no users yet.
	w := env.do(t, http.MethodGet, "/api/v1/auth/check-setup", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var setup map[string]bool
	decode(t, w, &setup)
	assert.False(t, setup["hasUsers"])

	_, user := env.bootstrap(t)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Empty(t, user.PasswordHash)

	w = env.do(t, http.MethodGet, "/api/v1/auth/check-setup", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &setup)
	assert.True(t, setup["hasUsers"])

	// Bootstrap is one-shot.
	w = env.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"username": "bob",
		"email":    "b@x.com",
		"password": "secret2",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSigninAndMe(t *testing.T) {
	env := setupTestEnv(t)
	env.bootstrap(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/signin", "", gin.H{
		"username": "alice",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	decode(t, w, &resp)
	require.NotEmpty(t, resp.Token)

	w = env.do(t, http.MethodGet, "/api/v1/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.User
	decode(t, w, &me)
	assert.Equal(t, "alice", me.Username)
	assert.Empty(t, me.PasswordHash)

	// The custom header works too.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("x-auth-token", resp.Token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Bad credentials and missing credentials are both 401.
	w = env.do(t, http.MethodPost, "/api/v1/auth/signin", "", gin.H{
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/auth/me", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutBlacklistsToken(t *testing.T) {
	env := setupTestEnv(t)
	token, _ := env.bootstrap(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// A well-signed but blacklisted token is rejected.
	w = env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutAllKillsEverySession(t *testing.T) {
	env := setupTestEnv(t)
	first, user := env.bootstrap(t)

	var extra []string
	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/auth/signin", "", gin.H{
			"username": "alice",
			"password": "secret1",
		})
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Token string `json:"token"`
		}
		decode(t, w, &resp)
		extra = append(extra, resp.Token)
	}

	listed, err := env.sessions.ListForUser(user.ID)
	require.NoError(t, err)
	require.Len(t, listed, 4)

	w := env.do(t, http.MethodPost, "/api/v1/auth/logout-all", first, nil)
	require.Equal(t, http.StatusOK, w.Code)

	for _, token := range append(extra, first) {
		w := env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestAdminUserManagement(t *testing.T) {
	env := setupTestEnv(t)
	adminToken, admin := env.bootstrap(t)

	// Create a restricted user.
	w := env.do(t, http.MethodPost, "/api/v1/admin/users", adminToken, gin.H{
		"username": "bob",
		"email":    "b@x.com",
		"password": "secret2",
		"role":     "user",
		"permissions": gin.H{
			"canWrite":    true,
			"deniedPaths": []string{"/private"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bob models.User
	decode(t, w, &bob)
	assert.Equal(t, models.RoleUser, bob.Role)
	assert.True(t, bob.Permissions.CanWrite)
	assert.True(t, bob.Permissions.CanRead)
	assert.Equal(t, admin.ID, bob.CreatedBy)

	// Duplicate username is a conflict.
	w = env.do(t, http.MethodPost, "/api/v1/admin/users", adminToken, gin.H{
		"username": "bob",
		"email":    "b2@x.com",
		"password": "secret2",
		"role":     "user",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// List shows both, sanitized.
	w = env.do(t, http.MethodGet, "/api/v1/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Users []models.User `json:"users"`
	}
	decode(t, w, &list)
	require.Len(t, list.Users, 2)
	for _, u := range list.Users {
		assert.Empty(t, u.PasswordHash)
	}

	// Non-admins are kept out.
	w = env.do(t, http.MethodPost, "/api/v1/auth/signin", "", gin.H{
		"username": "bob",
		"password": "secret2",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var bobSession struct {
		Token string `json:"token"`
	}
	decode(t, w, &bobSession)

	w = env.do(t, http.MethodGet, "/api/v1/admin/users", bobSession.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Update merges permissions rather than replacing them.
	w = env.do(t, http.MethodPut, "/api/v1/admin/users/"+bob.ID, adminToken, gin.H{
		"permissions": gin.H{"canUpload": true},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.User
	decode(t, w, &updated)
	assert.True(t, updated.Permissions.CanUpload)
	assert.True(t, updated.Permissions.CanWrite)
	assert.Equal(t, []string{"/private"}, updated.Permissions.DeniedPaths)

	// Self-delete is refused; deleting bob works and kills his session.
	w = env.do(t, http.MethodDelete, "/api/v1/admin/users/"+admin.ID, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/admin/users/"+bob.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/auth/me", bobSession.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/admin/users/no-such-id", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPermissionsTemplate(t *testing.T) {
	env := setupTestEnv(t)
	adminToken, _ := env.bootstrap(t)

	w := env.do(t, http.MethodGet, "/api/v1/admin/permissions-template", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var tpl models.UserPermissions
	decode(t, w, &tpl)
	assert.True(t, tpl.CanRead)
	assert.True(t, tpl.CanDownload)
	assert.False(t, tpl.CanWrite)
	assert.NotNil(t, tpl.AllowedPaths)
}

func TestFileRoutesAreCapabilityGated(t *testing.T) {
	env := setupTestEnv(t)
	adminToken, _ := env.bootstrap(t)

	// Seed a file and a directory inside the jail.
	require.NoError(t, os.MkdirAll(filepath.Join(env.filesDir, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(env.filesDir, "docs", "a.txt"), []byte("hello"), 0644))

	// bob can read but only under /docs, and never /docs/private.
	w := env.do(t, http.MethodPost, "/api/v1/admin/users", adminToken, gin.H{
		"username": "bob",
		"email":    "b@x.com",
		"password": "secret2",
		"role":     "user",
		"permissions": gin.H{
			"allowedPaths": []string{"/docs"},
			"deniedPaths":  []string{"/docs/private"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/signin", "", gin.H{
		"username": "bob",
		"password": "secret2",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var bob struct {
		Token string `json:"token"`
	}
	decode(t, w, &bob)

	// Allowed path, allowed capability.
	w = env.do(t, http.MethodPost, "/api/v1/file/files", bob.Token, gin.H{"path": "/docs"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var listing struct {
		Files []files.Info `json:"files"`
	}
	decode(t, w, &listing)
	require.Len(t, listing.Files, 1)
	assert.Equal(t, "a.txt", listing.Files[0].Name)

	// Denied path prefix.
	w = env.do(t, http.MethodPost, "/api/v1/file/files", bob.Token, gin.H{"path": "/docs/private"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Outside the allow list.
	w = env.do(t, http.MethodPost, "/api/v1/file/files", bob.Token, gin.H{"path": "/other"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Capability bob does not hold.
	w = env.do(t, http.MethodPost, "/api/v1/file/delete-files", bob.Token, gin.H{"paths": []string{"/docs/a.txt"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Search is scoped by the same allow list as listing.
	w = env.do(t, http.MethodGet, "/api/v1/file/search?q=a&path=/docs", bob.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/file/search?q=a&path=/other", bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin bypasses all of it.
	w = env.do(t, http.MethodPost, "/api/v1/file/files", adminToken, gin.H{"path": "/docs/private"})
	assert.NotEqual(t, http.StatusForbidden, w.Code)

	// Unauthenticated requests never reach the collaborator.
	w = env.do(t, http.MethodPost, "/api/v1/file/files", "", gin.H{"path": "/docs"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEmptyPathListIsRejectedNotAPanic(t *testing.T) {
	env := setupTestEnv(t)
	adminToken, _ := env.bootstrap(t)

	// An empty-but-present array passes a bare required binding; every
	// multi-path route must turn it into a clean 400.
	for _, route := range []string{"rename-files", "delete-files", "move-files", "archive-files"} {
		w := env.do(t, http.MethodPost, "/api/v1/file/"+route, adminToken, gin.H{
			"paths":   []string{},
			"name":    "x",
			"moveDir": "/",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, "route %s: %s", route, w.Body.String())
	}
}

func TestSearchFindsNestedMatches(t *testing.T) {
	env := setupTestEnv(t)
	adminToken, _ := env.bootstrap(t)

	require.NoError(t, os.MkdirAll(filepath.Join(env.filesDir, "docs", "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(env.filesDir, "docs", "sub", "Report.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(env.filesDir, "report-old.txt"), []byte("x"), 0644))

	// Scoped to /docs: only the nested match comes back, case-insensitively.
	w := env.do(t, http.MethodGet, "/api/v1/file/search?q=report&path=/docs", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Results []files.Info `json:"results"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/docs/sub/Report.txt", resp.Results[0].Path)

	// Missing query is a client error, not an empty result.
	w = env.do(t, http.MethodGet, "/api/v1/file/search?path=/docs", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The path drives the permission stage like every other file route.
	w = env.do(t, http.MethodGet, "/api/v1/file/search?q=report&path=/docs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDownloadUsesQueryPath(t *testing.T) {
	env := setupTestEnv(t)
	adminToken, _ := env.bootstrap(t)

	require.NoError(t, os.WriteFile(filepath.Join(env.filesDir, "report.txt"), []byte("data"), 0644))

	w := env.do(t, http.MethodGet, "/api/v1/file/download?path=/report.txt", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data", w.Body.String())
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
