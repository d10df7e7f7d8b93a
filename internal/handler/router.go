package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/Rzouga01/LearnHub-sub001/internal/middleware"
	"github.com/Rzouga01/LearnHub-sub001/internal/policy"
	"github.com/Rzouga01/LearnHub-sub001/pkg/config"
	"github.com/Rzouga01/LearnHub-sub001/pkg/logger"
	corsmiddleware "github.com/Rzouga01/LearnHub-sub001/pkg/middleware/cors"
	reqidmiddleware "github.com/Rzouga01/LearnHub-sub001/pkg/middleware/requestid"
)

// RouterDeps groups everything the HTTP surface needs.
type RouterDeps struct {
	Config       *config.Config
	Logger       *zap.Logger
	Tokens       middleware.TokenValidator
	Guard        *policy.Guard
	Applications *TrainerApplicationHandler
	Operations   *MetricsHandler
	Observer     middleware.RequestObserver
	SubmitLimit  *middleware.RateLimiter
}

// NewRouter wires middleware and routes onto a gin engine.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{APIPrefix: "/api/v1", Env: config.EnvDevelopment}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	guard := deps.Guard
	if guard == nil {
		guard = policy.NewGuard()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS))
	if deps.Observer != nil {
		r.Use(middleware.Metrics(deps.Observer))
	}

	if deps.Operations != nil {
		r.GET("/health", deps.Operations.Health)
		r.GET("/ready", deps.Operations.Ready)
		r.GET("/metrics", deps.Operations.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	api := r.Group(prefix)

	if h := deps.Applications; h != nil {
		apps := api.Group("/trainer-applications")

		submit := []gin.HandlerFunc{}
		if deps.SubmitLimit != nil {
			submit = append(submit, deps.SubmitLimit.Handler())
		}
		submit = append(submit, h.Submit)
		apps.POST("", submit...)

		staff := apps.Group("", middleware.JWT(deps.Tokens), middleware.WithResponseMeta())
		staff.GET("", middleware.RequireCapability(guard, policy.ActionList), h.List)
		staff.GET("/summary", middleware.RequireCapability(guard, policy.ActionViewSummary), h.Summary)
		staff.GET("/export", middleware.RequireCapability(guard, policy.ActionExport), middleware.Audit(log, "export"), h.Export)
		staff.GET("/:id", h.Get)
		staff.GET("/:id/history", h.History)
		staff.PATCH("/:id/status", middleware.RequireCapability(guard, policy.ActionTransitionStatus), middleware.Audit(log, "transition_status"), h.UpdateStatus)
		staff.GET("/:id/attachments/download", middleware.Audit(log, "download_attachment"), h.DownloadAttachment)
	}

	return r
}
