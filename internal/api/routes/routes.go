package routes

import (
	"filepanel/internal/api/handlers"
	"filepanel/internal/api/middleware"
	"filepanel/internal/config"
	"filepanel/internal/files"
	"filepanel/internal/models"
	"filepanel/internal/services"

	"github.com/gin-gonic/gin"
)

// Deps is everything the route table needs, constructed once in main with
// an explicit lifecycle instead of package-level singletons.
type Deps struct {
	Cfg      *config.Config
	Users    *services.UserService
	Sessions *services.SessionService
	Auth     *services.AuthService
	Files    files.Manager
	Limiter  *middleware.RateLimiter
}

func SetupRoutes(r *gin.Engine, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Auth, d.Users, d.Sessions)
	usersHandler := handlers.NewUsersHandler(d.Users, d.Sessions)
	filesHandler := handlers.NewFilesHandler(d.Files)

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.ErrorHandler())

	requireAuth := middleware.RequireAuth(d.Auth, d.Sessions, d.Users)
	requirePerm := func(cap models.Capability) gin.HandlerFunc {
		return middleware.RequirePermission(d.Users, cap)
	}

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := api.Group("/v1")

	auth := v1.Group("/auth")
	{
		throttled := auth.Group("")
		if d.Limiter != nil && d.Cfg.Security.RateLimit.Enabled {
			throttled.Use(d.Limiter.Middleware())
		}
		throttled.POST("/signup", authHandler.Signup)
		throttled.POST("/signin", authHandler.Signin)

		auth.GET("/check-setup", authHandler.CheckSetup)
		auth.POST("/logout", requireAuth, authHandler.Logout)
		auth.POST("/logout-all", requireAuth, authHandler.LogoutAll)
		auth.GET("/me", requireAuth, authHandler.Me)
	}

	admin := v1.Group("/admin")
	admin.Use(requireAuth, middleware.RequireAdmin())
	{
		admin.GET("/users", usersHandler.List)
		admin.POST("/users", usersHandler.Create)
		admin.PUT("/users/:id", usersHandler.Update)
		admin.DELETE("/users/:id", usersHandler.Delete)
		admin.GET("/permissions-template", usersHandler.PermissionsTemplate)
	}

	file := v1.Group("/file")
	file.Use(requireAuth)
	{
		file.POST("/files", requirePerm(models.CapRead), filesHandler.List)
		file.POST("/create-dir", requirePerm(models.CapCreateFolder), filesHandler.CreateDir)
		file.POST("/delete-files", requirePerm(models.CapDelete), filesHandler.Delete)
		file.POST("/rename-files", requirePerm(models.CapRename), filesHandler.Rename)
		file.POST("/move-files", requirePerm(models.CapMove), filesHandler.Move)
		file.POST("/archive-files", requirePerm(models.CapArchive), filesHandler.Archive)
		file.POST("/upload-files", requirePerm(models.CapUpload), filesHandler.Upload)
		file.GET("/download", requirePerm(models.CapDownload), filesHandler.Download)
		file.GET("/search", requirePerm(models.CapRead), filesHandler.Search)
	}
}
