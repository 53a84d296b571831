// Package router wires HTTP routes, middleware and role guards.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/acadperu/sigea-api/internal/handler"
	"github.com/acadperu/sigea-api/internal/middleware"
	"github.com/acadperu/sigea-api/internal/models"
	"github.com/acadperu/sigea-api/internal/service"
	"github.com/acadperu/sigea-api/pkg/config"
	"github.com/acadperu/sigea-api/pkg/logger"
	corsmiddleware "github.com/acadperu/sigea-api/pkg/middleware/cors"
	reqidmiddleware "github.com/acadperu/sigea-api/pkg/middleware/requestid"
)

// Services bundles everything the router exposes.
type Services struct {
	Auth    *service.AuthService
	Catalog *service.CatalogService
	Schemes *service.GradeSchemeService
	Grades  *service.GradeService
	Reports *service.ReportService
}

// New assembles the gin engine with all routes and guards.
func New(cfg *config.Config, logr *zap.Logger, svcs Services) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(svcs.Auth)
	catalogHandler := handler.NewCatalogHandler(svcs.Catalog)
	schemeHandler := handler.NewGradeSchemeHandler(svcs.Schemes)
	gradeHandler := handler.NewGradeHandler(svcs.Grades)
	reportHandler := handler.NewReportHandler(svcs.Reports)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(svcs.Auth))
		authed.POST("/logout", authHandler.Logout)
		authed.PUT("/password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	protected := api.Group("", middleware.JWT(svcs.Auth))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleDocente)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	courses := protected.Group("/courses")
	{
		courses.GET("", catalogHandler.ListCourses)
		courses.GET("/:id", catalogHandler.GetCourse)
		courses.GET("/:id/enrollments", staff, catalogHandler.CourseEnrollments)
		courses.POST("", adminOnly, catalogHandler.CreateCourse)
		courses.PUT("/:id", adminOnly, catalogHandler.UpdateCourse)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.POST("", adminOnly, catalogHandler.Enroll)
		enrollments.DELETE("/:id", adminOnly, catalogHandler.Withdraw)
	}

	schemes := protected.Group("/grade-schemes")
	{
		schemes.GET("", schemeHandler.Get)
		schemes.POST("", adminOnly, schemeHandler.Create)
		schemes.PUT("/:id", adminOnly, schemeHandler.Update)
		schemes.POST("/:id/finalize", adminOnly, schemeHandler.Finalize)
	}

	grades := protected.Group("/grades")
	{
		grades.GET("", gradeHandler.List)
		grades.POST("", staff, gradeHandler.Create)
		grades.PUT("/:id", staff, gradeHandler.Update)
		grades.DELETE("/:id", staff, gradeHandler.Delete)
		grades.GET("/:id/history", gradeHandler.History)
	}

	students := protected.Group("/students")
	{
		students.GET("/:studentId/enrollments", catalogHandler.StudentEnrollments)
		students.GET("/:studentId/courses/:courseId/final-grade", gradeHandler.FinalGrade)
		students.GET("/:studentId/courses/:courseId/structure", gradeHandler.Structure)
	}

	reports := protected.Group("/reports", staff)
	{
		reports.GET("/courses/:id", reportHandler.CourseReport)
	}

	return r
}
