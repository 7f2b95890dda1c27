package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/quotedesk/internal/catalog/domain"
	"github.com/smallbiznis/quotedesk/internal/config"
	groupdomain "github.com/smallbiznis/quotedesk/internal/group/domain"
	obsmetrics "github.com/smallbiznis/quotedesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/quotedesk/internal/observability/tracing"
	"github.com/smallbiznis/quotedesk/internal/pricing"
	quotedomain "github.com/smallbiznis/quotedesk/internal/quote/domain"
	versiondomain "github.com/smallbiznis/quotedesk/internal/quoteversion/domain"
	stagedomain "github.com/smallbiznis/quotedesk/internal/stage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogMiddleware(log))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", httpMetrics.Handler())

	return r
}

func registerGin(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	genID      *snowflake.Node
	quoteSvc   quotedomain.Service
	versionSvc versiondomain.Service
	stageSvc   stagedomain.Service
	groupSvc   groupdomain.Service
	catalogSvc catalogdomain.Service
	previewer  *pricing.Previewer
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	GenID      *snowflake.Node
	QuoteSvc   quotedomain.Service
	VersionSvc versiondomain.Service
	StageSvc   stagedomain.Service
	GroupSvc   groupdomain.Service
	CatalogSvc catalogdomain.Service
	Previewer  *pricing.Previewer
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		genID:      p.GenID,
		quoteSvc:   p.QuoteSvc,
		versionSvc: p.VersionSvc,
		stageSvc:   p.StageSvc,
		groupSvc:   p.GroupSvc,
		catalogSvc: p.CatalogSvc,
		previewer:  p.Previewer,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.ActorRequired())

	// -------- Quotes --------
	api.POST("/quotes", s.CreateQuote)
	api.GET("/quotes/:id", s.GetQuote)
	api.GET("/quotes/:id/state", s.GetQuoteState)
	api.POST("/quotes/:id/submit", s.SubmitQuote)
	api.POST("/quotes/:id/unravel", s.UnravelQuote)
	api.POST("/quotes/:id/aliveness", s.SetQuoteAliveness)
	api.POST("/quotes/:id/activeness", s.SetQuoteActiveness)
	api.POST("/quotes/:id/replicate", s.ReplicateQuote)
	api.DELETE("/quotes/:id", s.DeleteQuote)

	// -------- Versions --------
	api.GET("/quotes/:id/versions", s.ListVersions)
	api.POST("/quotes/:id/versions/resolve", s.ResolveVersion)
	api.POST("/quotes/:id/versions", s.CreateVersion)
	api.POST("/quotes/:id/versions/:versionId/branch", s.BranchVersion)
	api.POST("/quotes/:id/versions/:versionId/activate", s.SwitchActiveVersion)
	api.DELETE("/quotes/:id/versions/:versionId", s.DeleteVersion)

	// -------- Stages --------
	api.POST("/quotes/:id/versions/:versionId/stages/setup", s.ProcessSetupStage)
	api.POST("/quotes/:id/versions/:versionId/stages/import", s.ProcessImportStage)
	api.POST("/quotes/:id/versions/:versionId/stages/assets", s.ProcessAssetsStage)
	api.POST("/quotes/:id/versions/:versionId/stages/margin", s.ProcessMarginStage)
	api.POST("/quotes/:id/versions/:versionId/stages/discount", s.ProcessDiscountStage)
	api.POST("/quotes/:id/versions/:versionId/stages/details", s.ProcessDetailsStage)
	api.POST("/quotes/:id/versions/:versionId/stages/assets-review", s.ProcessAssetsReviewStage)

	// -------- Groups --------
	api.GET("/versions/:versionId/groups", s.ListGroups)
	api.POST("/versions/:versionId/groups", s.CreateGroup)
	api.PATCH("/versions/:versionId/groups/:groupId", s.UpdateGroup)
	api.DELETE("/versions/:versionId/groups/:groupId", s.DeleteGroup)
	api.POST("/versions/:versionId/groups/move-items", s.MoveItems)
	api.POST("/versions/:versionId/mark-exclusivity", s.MarkExclusivity)

	// -------- Pricing --------
	api.POST("/pricing/preview", s.PreviewPricing)

	// -------- Catalog --------
	api.GET("/catalog/discounts", s.ListCatalogDiscounts)
}
