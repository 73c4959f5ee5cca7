package router

import (
	"log/slog"

	"lexia/config"
	"lexia/controllers"
	dbpkg "lexia/db"
	"lexia/middleware"
	"lexia/templates"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

// Initialize wires all routes and middlewares.
// database may be nil; the events routes then answer 503.
func Initialize(r *gin.Engine, cfg config.Configuration, ctl *controllers.Controller, database *gorm.DB, logger *slog.Logger) error {
	pages, err := templates.Load()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(pages)

	r.Use(gin.CustomRecovery(ctl.Recovered))
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigins...))
	r.Use(Logger(logger.With("component", "http")))

	r.NoRoute(controllers.NotFound)

	r.GET("/", ctl.Root)
	r.GET("/health", ctl.Health)

	webhook := r.Group("/webhook")
	webhook.POST("/kommo", ctl.KommoWebhook)
	webhook.GET("/test", ctl.WebhookTestGet)
	webhook.POST("/test", ctl.WebhookTestPost)

	// Admin (archived payloads, database sink only)
	events := webhook.Group("/events")
	events.Use(Authorizer(cfg.AdminToken))
	events.Use(dbpkg.SetDBtoContext(database))
	events.GET("", controllers.GetEvents)
	events.GET("/:id", controllers.GetEventByID)

	auth := r.Group("/auth")
	auth.GET("", ctl.AuthPage)
	auth.GET("/callback", ctl.AuthCallback)
	auth.POST("/refresh", ctl.AuthRefresh)

	return nil
}
