package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lostfound-api/internal/middleware"
	"github.com/noah-isme/lostfound-api/internal/models"
)

// Routes bundles everything RegisterRoutes mounts.
type Routes struct {
	Auth  *AuthHandler
	Items *ItemHandler
	Users *UserHandler

	Tokens     middleware.TokenValidator
	CookieName string
	// UploadLimit bounds request bodies of upload endpoints.
	UploadLimit int64
}

// RegisterRoutes mounts the API under api.
func RegisterRoutes(api *gin.RouterGroup, r Routes) {
	auth := middleware.JWT(r.Tokens, r.CookieName)
	maybeAuth := middleware.OptionalJWT(r.Tokens, r.CookieName)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	upload := limitBody(r.UploadLimit)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", r.Auth.Register)
	authGroup.POST("/login", r.Auth.Login)
	authGroup.POST("/logout", auth, r.Auth.Logout)
	authGroup.GET("/me", auth, r.Auth.Me)

	items := api.Group("/items")
	items.GET("", maybeAuth, r.Items.List)
	items.GET("/options", r.Items.Options)
	items.GET("/mine", auth, r.Items.Mine)
	items.GET("/export", auth, adminOnly, r.Items.Export)
	items.POST("/expire-overdue", auth, adminOnly, r.Items.ExpireOverdue)
	items.GET("/:id", maybeAuth, r.Items.Get)
	items.GET("/:id/history", auth, r.Items.History)
	items.POST("", auth, upload, r.Items.Create)
	items.PUT("/:id", auth, upload, r.Items.Update)
	items.DELETE("/:id", auth, r.Items.Delete)
	items.PUT("/:id/deliver", auth, r.Items.Deliver)
	items.PUT("/:id/expire", auth, r.Items.Expire)

	users := api.Group("/users")
	users.GET("/search", auth, r.Users.Search)
	users.PUT("/me", auth, r.Users.UpdateProfile)
	users.PUT("/me/password", auth, r.Users.ChangePassword)
	users.POST("/me/photo", auth, upload, r.Users.UpdatePhoto)
}

// limitBody caps the request body. Multipart overhead gets one extra MiB on top of limit.
func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)
		}
		c.Next()
	}
}
