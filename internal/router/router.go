package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/foodia/backend/config"
	"github.com/foodia/backend/internal/api"
)

// SetupRouter configures the application routes
func SetupRouter(
	cfg *config.Config,
	authHandler *api.AuthHandler,
	recipeHandler *api.RecipeHandler,
	userHandler *api.UserHandler,
) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "Accept-Language"},
		AllowCredentials: true,
	}))

	v1 := router.Group("/api/v1")
	authHandler.RegisterRoutes(v1)
	recipeHandler.RegisterRoutes(v1)
	userHandler.RegisterRoutes(v1)

	return router
}
