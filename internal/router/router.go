// Package router registers every HTTP route together with the middleware
// that guards it.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-listings/internal/config"
	"github.com/iliyamo/property-listings/internal/handler"
	"github.com/iliyamo/property-listings/internal/middleware"
	"github.com/iliyamo/property-listings/internal/model"
)

// Handlers groups what the routes dispatch to.
type Handlers struct {
	Auth     *handler.AuthHandler
	Listings *handler.ListingHandler
	Images   *handler.ImageHandler
	Library  *handler.LibraryHandler
	Analysis *handler.AnalysisHandler
	Ready    echo.HandlerFunc
	Metrics  echo.HandlerFunc
}

// Guards carries the shared middleware.
type Guards struct {
	JWTSecret string
	Limiter   *middleware.RateLimiter
	Cache     echo.MiddlewareFunc
}

// Register wires all routes onto e.
func Register(e *echo.Echo, h Handlers, g Guards) {
	RegisterRoutes(e, h)
	RegisterAuth(e, h.Auth, g)
	RegisterPublic(e, h, g)
	RegisterOwner(e, h, g)
	RegisterAdmin(e, h, g)
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health)
	if h.Ready != nil {
		e.GET("/readyz", h.Ready)
	}
	if h.Metrics != nil {
		e.GET("/metrics", h.Metrics)
	}
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// profile endpoint at /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	rl := g.Limiter
	auth := e.Group("/v1/auth")
	auth.POST("/register", a.Register, rl.Limit(config.PolicyRegister))
	auth.POST("/login", a.Login, rl.Limit(config.PolicyLogin))
	auth.POST("/refresh", a.Refresh)
	// Logout works with a refresh token alone or with a bearer token.
	auth.POST("/logout", a.Logout, middleware.OptionalJWT(g.JWTSecret))
	auth.POST("/oauth/google", a.GoogleLogin, rl.Limit(config.PolicyLogin))
	auth.POST("/otp/send", a.SendOTP, rl.Limit(config.PolicyOTP))
	auth.POST("/otp/verify", a.VerifyOTP, rl.Limit(config.PolicyOTP))
	auth.POST("/password/forgot", a.ForgotPassword, rl.Limit(config.PolicyPasswordReset))
	auth.POST("/password/reset", a.ResetPassword, rl.Limit(config.PolicyPasswordReset))

	e.GET("/v1/me", a.Me, middleware.JWTAuth(g.JWTSecret))
}

// RegisterPublic registers browse, detail and the analysis proxy. Detail
// and analysis accept an optional bearer token.
func RegisterPublic(e *echo.Echo, h Handlers, g Guards) {
	optional := middleware.OptionalJWT(g.JWTSecret)
	browse := []echo.MiddlewareFunc{}
	if g.Cache != nil {
		browse = append(browse, g.Cache)
	}
	e.GET("/v1/listings", h.Listings.ListPublic, browse...)
	e.GET("/v1/listings/:id", h.Listings.Get, optional)

	analysis := g.Limiter.Limit(config.PolicyAnalysis)
	e.POST("/v1/analysis", h.Analysis.Analyze, optional, analysis)
	e.POST("/v1/properties/search", h.Analysis.Search, optional, analysis)
}

// RegisterOwner registers /v1/my: the caller's listings, their images and
// the saved-analysis library.
func RegisterOwner(e *echo.Echo, h Handlers, g Guards) {
	my := e.Group("/v1/my", middleware.JWTAuth(g.JWTSecret), middleware.RequireRole(model.RoleUser, model.RoleAdmin))

	my.GET("/listings", h.Listings.ListOwn)
	my.POST("/listings", h.Listings.Create, g.Limiter.Limit(config.PolicyListingSubmit))
	my.GET("/listings/:id", h.Listings.Get)
	my.PUT("/listings/:id", h.Listings.Update)
	my.DELETE("/listings/:id", h.Listings.Delete)
	my.POST("/listings/:id/submit", h.Listings.Submit)

	my.POST("/listings/:id/images", h.Images.Upload)
	my.POST("/listings/:id/images/batch", h.Images.UploadBatch)
	my.PUT("/listings/:id/images/:imageId/primary", h.Images.SetPrimary)
	my.DELETE("/listings/:id/images/:imageId", h.Images.Delete)

	my.GET("/library", h.Library.List)
	my.POST("/library", h.Library.Save)
	my.GET("/library/:id", h.Library.Get)
	my.DELETE("/library/:id", h.Library.Delete)
}

// RegisterAdmin registers the moderation endpoints. Every route requires
// the ADMIN role.
func RegisterAdmin(e *echo.Echo, h Handlers, g Guards) {
	admin := e.Group("/v1/admin", middleware.JWTAuth(g.JWTSecret), middleware.RequireRole(model.RoleAdmin))

	admin.GET("/listings", h.Listings.ListAdmin)
	admin.GET("/listings/:id", h.Listings.Get)
	admin.PUT("/listings/:id", h.Listings.Update)
	admin.DELETE("/listings/:id", h.Listings.Delete)

	admin.POST("/listings/:id/approve", h.Listings.Approve)
	admin.POST("/listings/:id/reject", h.Listings.Reject)
	admin.POST("/listings/:id/reset", h.Listings.Reset)
	admin.POST("/listings/:id/sold", h.Listings.MarkSold)
	admin.POST("/listings/:id/revert-sold", h.Listings.RevertSold)

	admin.POST("/listings/:id/images", h.Images.AdminUpload)

	admin.GET("/stats", h.Listings.Stats)
	admin.GET("/activity", h.Listings.Activity)
}
