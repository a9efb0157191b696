package router

import (
	"net/http"
	"time"

	"fintrack/api"
	"fintrack/auth"
	"fintrack/config"
	"fintrack/database"
	_ "fintrack/docs"
	"fintrack/middleware"
	"fintrack/repository"
	"fintrack/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, db *database.DB) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()
	r.MaxMultipartMemory = cfg.Upload.MaxPhotoBytes + 1<<20

	// CORS 中间件
	r.Use(middleware.CORS(cfg.CORS.AllowOrigins))

	users := repository.NewUserRepository(db.User)
	finance := repository.NewFinanceRepository(db.Data)

	tokens := auth.NewTokenService(users, cfg.JWT.ExpireTime, cfg.JWT.SessionTokenExpireTime)
	sessions := auth.NewSessionManager(cfg.Session.Secret, cfg.Session.CookieName, cfg.SessionMaxAge(), cfg.IsRelease())
	mailer := service.NewEmailService(cfg.Email)
	google := service.NewGoogleClient(cfg.OAuth.Google)

	authHandler := api.NewAuthHandler(cfg, users, tokens, sessions, mailer)
	oauthHandler := api.NewOAuthHandler(cfg, google, users, tokens, sessions, mailer)
	userHandler := api.NewUserHandler(cfg, users)
	accountHandler := api.NewAccountHandler(cfg, finance)
	entryHandler := api.NewEntryHandler(cfg, finance)
	tagHandler := api.NewTagHandler(cfg, finance)
	holdingsHandler := api.NewHoldingsHandler(cfg, finance)
	analyticsHandler := api.NewAnalyticsHandler(cfg, finance)
	exportHandler := api.NewExportHandler(cfg, finance)

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiGroup := r.Group("/api")

	// 健康检查
	apiGroup.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	requireAuth := middleware.JWTAuth(tokens, sessions)

	// 认证相关路由
	authGroup := apiGroup.Group("/auth")
	{
		limit := middleware.LoginRateLimit(cfg.RateLimit.LoginMaxAttempts, cfg.LoginWindow())
		authGroup.POST("/register", limit, authHandler.Register)
		authGroup.POST("/login", limit, authHandler.Login)
		authGroup.POST("/token", authHandler.Token)
		authGroup.POST("/verify", authHandler.Verify)
		authGroup.GET("/session", authHandler.Session)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/clear-session", authHandler.ClearSession)
		authGroup.POST("/keys/rotate", requireAuth, authHandler.RotateKeys)

		authGroup.GET("/google/url", oauthHandler.GoogleURL)
		authGroup.GET("/callback", oauthHandler.Callback)
	}

	// 头像可公开访问，<img> 标签无法携带 token
	apiGroup.GET("/users/:username/photo", userHandler.GetPhoto)

	// 需要登录的路由
	authorized := apiGroup.Group("")
	authorized.Use(requireAuth)
	{
		profile := authorized.Group("/users/profile")
		{
			profile.GET("", userHandler.GetProfile)
			profile.PUT("", userHandler.UpdateProfile)
			profile.GET("/timestamp", userHandler.ProfileTimestamp)
			profile.POST("/photo", userHandler.UploadPhoto)
		}

		accounts := authorized.Group("/accounts")
		{
			accounts.GET("", accountHandler.List)
			accounts.POST("", accountHandler.Create)
			accounts.GET("/:id", accountHandler.Get)
			accounts.PUT("/:id", accountHandler.Update)
			accounts.DELETE("/:id", accountHandler.Delete)
			accounts.GET("/:id/balance", accountHandler.Balance)
			accounts.GET("/:id/balance/history", accountHandler.BalanceHistory)
		}

		entries := authorized.Group("/entries")
		{
			entries.GET("", entryHandler.List)
			entries.POST("", entryHandler.Create)
			entries.POST("/bulk", entryHandler.BulkCreate)
			entries.GET("/search", entryHandler.Search)
			entries.GET("/categories", entryHandler.Categories)
			entries.GET("/date-limits", entryHandler.DateLimits)
			entries.GET("/export/csv", exportHandler.ExportCSV)
			entries.GET("/export/xlsx", exportHandler.ExportXLSX)
			entries.GET("/:id", entryHandler.Get)
			entries.PUT("/:id", entryHandler.Update)
			entries.DELETE("/:id", entryHandler.Delete)
			entries.GET("/:id/tags", tagHandler.ListEntryTags)
			entries.POST("/:id/tags", tagHandler.AddEntryTag)
			entries.DELETE("/:id/tags/:tag_id", tagHandler.RemoveEntryTag)
		}

		authorized.GET("/investments", holdingsHandler.ListInvestments)
		authorized.POST("/investments", holdingsHandler.CreateInvestment)
		authorized.GET("/budgets", holdingsHandler.ListBudgets)
		authorized.POST("/budgets", holdingsHandler.CreateBudget)
		authorized.GET("/tags", tagHandler.List)
		authorized.POST("/tags", tagHandler.Create)

		authorized.GET("/analytics/spending-by-category", analyticsHandler.SpendingByCategory)
		authorized.GET("/finance/last-updated", analyticsHandler.LastUpdated)
	}

	return r
}
