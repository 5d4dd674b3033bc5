package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/coursehub/internal/auth"
	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/principal"
	"github.com/geocoder89/coursehub/internal/http/handlers"
	"github.com/geocoder89/coursehub/internal/http/middlewares"
	"github.com/geocoder89/coursehub/internal/imagehost"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// CourseRepository is the full course store.
type CourseRepository interface {
	handlers.CourseStore
	ListByIDs(ctx context.Context, ids []string) ([]course.Course, error)
}

type Deps struct {
	Config config.Config

	Users     handlers.PrincipalStore
	Admins    handlers.PrincipalStore
	Courses   CourseRepository
	// PurchaseCourses answers the course-exists check before a purchase.
	// It must bypass any read cache in front of Courses; nil means Courses.
	PurchaseCourses handlers.CourseReader
	Purchases       handlers.PurchaseStore
	Cleanup   handlers.CleanupQueue

	UserTokens  *auth.Manager
	AdminTokens *auth.Manager
	Hasher      handlers.PasswordHasher
	// Denylist is optional; leave nil to skip logout revocation.
	Denylist auth.Denylist

	Images imagehost.Host
	// LocalImagesDir is served under imagehost.PublicPath when set.
	LocalImagesDir string

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Ready    map[string]handlers.Pinger
}

// jsonBodyLimit covers every JSON auth payload.
const jsonBodyLimit = 1 << 20

func NewRouter(log *slog.Logger, d Deps) *gin.Engine {
	if d.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware("coursehub-api"))
	r.Use(middlewares.RequestLogger(log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.CORSMiddleware(d.Config.FrontendURLs))
	r.Use(middlewares.SecurityHeaders(imagehost.PublicPath, d.Config.IsProd()))
	r.Use(middlewares.MaxBodyBytes(jsonBodyLimit, d.Config.MaxUploadBytes+jsonBodyLimit))

	// ops
	health := handlers.NewHealthHandler(d.Ready)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	if d.LocalImagesDir != "" {
		r.StaticFS(imagehost.PublicPath, http.Dir(d.LocalImagesDir))
	}

	userMW := middlewares.NewAuthMiddleware(d.UserTokens, d.Denylist)
	adminMW := middlewares.NewAuthMiddleware(d.AdminTokens, d.Denylist)

	requireUser := []gin.HandlerFunc{userMW.RequireAuth(), middlewares.RequireKind(principal.KindUser)}
	requireAdmin := []gin.HandlerFunc{adminMW.RequireAuth(), middlewares.RequireKind(principal.KindAdmin)}

	usersH := handlers.NewAuthHandler(d.Users, d.UserTokens, d.Hasher, d.Denylist, d.Prom, log, d.Config)
	adminsH := handlers.NewAuthHandler(d.Admins, d.AdminTokens, d.Hasher, d.Denylist, d.Prom, log, d.Config)
	coursesH := handlers.NewCoursesHandler(d.Courses, d.Images, d.Cleanup, log, d.Config.MaxUploadBytes)
	purchaseCourses := d.PurchaseCourses
	if purchaseCourses == nil {
		purchaseCourses = d.Courses
	}
	purchasesH := handlers.NewPurchasesHandler(purchaseCourses, d.Purchases, d.Prom, log)

	api := r.Group("/api/v1")

	user := api.Group("/user")
	{
		user.POST("/signup", middlewares.RequireJSON(), usersH.SignUp)
		user.POST("/login", middlewares.RequireJSON(), usersH.Login)
		user.GET("/logout", usersH.Logout)

		authed := user.Group("", requireUser...)
		authed.PUT("/update", middlewares.RequireJSON(), usersH.UpdateProfile)
		authed.PUT("/update-password", middlewares.RequireJSON(), usersH.UpdatePassword)
		authed.GET("/purchases", purchasesH.ListMine)
	}

	admin := api.Group("/admin")
	{
		admin.POST("/signup", middlewares.RequireJSON(), adminsH.SignUp)
		admin.POST("/login", middlewares.RequireJSON(), adminsH.Login)
		admin.GET("/logout", adminsH.Logout)

		authed := admin.Group("", requireAdmin...)
		authed.PUT("/update", middlewares.RequireJSON(), adminsH.UpdateProfile)
		authed.PUT("/update-password", middlewares.RequireJSON(), adminsH.UpdatePassword)
	}

	courses := api.Group("/course")
	{
		courses.GET("/courses", coursesH.List)
		courses.GET("/details/:id", coursesH.Details)

		courses.POST("/create", append(requireAdmin, coursesH.Create)...)
		courses.PUT("/update/:id", append(requireAdmin, coursesH.Update)...)
		courses.DELETE("/delete/:id", append(requireAdmin, coursesH.Delete)...)

		courses.POST("/buy/:id", append(requireUser, purchasesH.Buy)...)
	}

	return r
}
