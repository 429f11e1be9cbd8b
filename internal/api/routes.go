package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"recipehub/internal/api/middleware"
	"recipehub/internal/auth"
	"recipehub/internal/comment"
	"recipehub/internal/config"
	"recipehub/internal/rating"
	"recipehub/internal/recipe"
	"recipehub/internal/user"
)

// RegisterRoutes 注册 /v1 业务路由。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	authService *auth.AuthService,
	redisClient sessionStore,
	logger *slog.Logger,
	storageClient imageStorage,
) {
	ratings := rating.NewAggregator(db, rating.Scale(cfg.Policy.RatingScale), logger)
	recipes := recipe.NewStore(db, ratings, storageClient, logger)
	comments := comment.NewStore(db, cfg.Policy.CommentsOnePerRecipe, logger)
	users := user.NewStore(db, storageClient, logger)

	authHandler := NewAuthHandler(
		users,
		authService,
		redisClient,
		logger,
		cfg.Auth.LoginRateLimitPerHour,
		cfg.Auth.LoginLockThreshold,
		cfg.Auth.LoginLockTTL,
		cfg.API.CookieDomain,
	)
	recipeHandler := NewRecipeHandler(recipes, ratings, comments, newImageUploader(storageClient, logger, cfg.Clamd.Addr), logger)
	commentHandler := NewCommentHandler(comments, logger)
	userHandler := NewUserHandler(users, logger)

	authMiddleware := middleware.AuthMiddleware(authService)
	optionalAuth := middleware.OptionalAuthMiddleware(authService)

	v1 := router.Group("/v1")
	v1.Use(middleware.RateLimitMiddleware(redisClient, cfg.RateLimit.RequestsPerMinute))
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.Signup)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.GET("/me", authMiddleware, authHandler.Me)
		}

		userGroup := v1.Group("/users")
		{
			userGroup.GET("", userHandler.List)
			userGroup.GET("/:id", userHandler.Get)
			userGroup.PUT("/:id", authMiddleware, userHandler.Update)
			userGroup.DELETE("/:id", authMiddleware, userHandler.Delete)
		}

		recipeGroup := v1.Group("/recipes")
		{
			recipeGroup.GET("", optionalAuth, recipeHandler.List)
			recipeGroup.POST("", authMiddleware, recipeHandler.Create)
			recipeGroup.GET("/:id", optionalAuth, recipeHandler.Get)
			recipeGroup.PUT("/:id", authMiddleware, recipeHandler.Update)
			recipeGroup.DELETE("/:id", authMiddleware, recipeHandler.Delete)

			recipeGroup.GET("/:id/ratings", recipeHandler.Ratings)
			recipeGroup.POST("/:id/ratings", authMiddleware, recipeHandler.Rate)

			recipeGroup.GET("/:id/comments", commentHandler.List)
			recipeGroup.POST("/:id/comments", authMiddleware, commentHandler.Add)
		}

		commentGroup := v1.Group("/comments")
		commentGroup.Use(authMiddleware)
		{
			commentGroup.PUT("/:id", commentHandler.Update)
			commentGroup.DELETE("/:id", commentHandler.Remove)
		}
	}
}
