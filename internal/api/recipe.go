package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodia/backend/config"
	"github.com/foodia/backend/internal/middleware"
	"github.com/foodia/backend/internal/service"
)

// RecipeHandler serves recipe CRUD and the generation pipeline.
type RecipeHandler struct {
	recipes      *service.RecipeService
	quota        *service.QuotaService
	llm          *service.LLMService
	images       *service.ImageService
	auth         *service.AuthService
	limiter      *middleware.RateLimiter
	chargePolicy string
}

// NewRecipeHandler creates a new RecipeHandler instance. limiter may be nil.
func NewRecipeHandler(
	recipes *service.RecipeService,
	quota *service.QuotaService,
	llm *service.LLMService,
	images *service.ImageService,
	auth *service.AuthService,
	limiter *middleware.RateLimiter,
	chargePolicy string,
) *RecipeHandler {
	return &RecipeHandler{
		recipes:      recipes,
		quota:        quota,
		llm:          llm,
		images:       images,
		auth:         auth,
		limiter:      limiter,
		chargePolicy: chargePolicy,
	}
}

// RegisterRoutes registers the recipe routes
func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	recipes := router.Group("/recipes", middleware.AuthMiddleware(h.auth))
	{
		generate := recipes.Group("")
		if h.limiter != nil {
			generate.Use(h.limiter.Middleware())
		}
		generate.POST("/generate", h.Generate)

		recipes.GET("", h.ListRecipes)
		recipes.GET("/mine", h.MyRecipes)
		recipes.GET("/:id", h.GetRecipe)
		recipes.POST("", h.CreateRecipe)
		recipes.DELETE("/:id", h.DeleteRecipe)
	}
}

// Generate runs the synthesis pipeline: credit check, prompt build, model
// call, repair/parse, validation, image enrichment, persistence.
func (h *RecipeHandler) Generate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	// Reject unknown-shaped input instead of trusting it.
	var req service.GenerateRecipeRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()

	// The credit is consumed before the model call; whether a downstream
	// failure refunds it depends on the configured charge policy.
	tier, err := h.quota.ConsumeCredit(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrQuotaExhausted) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not enough generation credit"})
			return
		}
		log.Printf("[RecipeHandler] credit check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate recipe"})
		return
	}

	prompt := service.BuildRecipePrompt(&req, preferredLanguage(c))

	data, err := h.llm.GenerateRecipe(ctx, prompt)
	if err != nil {
		h.maybeRefund(c, userID, tier)
		if errors.Is(err, service.ErrMalformedOutput) {
			log.Printf("[RecipeHandler] malformed model output: %v", err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid generation result"})
			return
		}
		log.Printf("[RecipeHandler] model call failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate recipe"})
		return
	}

	if err := service.ValidateRecipeData(data); err != nil {
		h.maybeRefund(c, userID, tier)
		log.Printf("[RecipeHandler] generated recipe failed validation: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid generation result"})
		return
	}

	// Image lookup never aborts the pipeline; a nil URL is a valid outcome.
	imageURL := h.images.FetchFoodImage(ctx, data.Title)

	recipe := service.RecipeFromData(data, imageURL, &userID)
	if err := h.recipes.CreateRecipe(ctx, recipe); err != nil {
		h.maybeRefund(c, userID, tier)
		log.Printf("[RecipeHandler] failed to save recipe: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save recipe"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"recipe": recipe})
}

// maybeRefund returns the consumed credit under the charge-on-success policy.
func (h *RecipeHandler) maybeRefund(c *gin.Context, userID uuid.UUID, tier service.CreditTier) {
	if h.chargePolicy != config.ChargeOnSuccess {
		return
	}
	if err := h.quota.RefundCredit(c.Request.Context(), userID, tier); err != nil {
		log.Printf("[RecipeHandler] credit refund failed: %v", err)
	}
}

// CreateRecipe persists a caller-authored recipe after full schema
// validation.
func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var data service.RecipeData
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := service.ValidateRecipeData(&data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	recipe := service.RecipeFromData(&data, nil, &userID)
	if err := h.recipes.CreateRecipe(c.Request.Context(), recipe); err != nil {
		log.Printf("[RecipeHandler] failed to create recipe: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create recipe"})
		return
	}

	c.JSON(http.StatusCreated, recipe)
}

func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	recipes, err := h.recipes.ListRecipes(c.Request.Context(), c.Query("q"))
	if err != nil {
		log.Printf("[RecipeHandler] failed to list recipes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch recipes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

func (h *RecipeHandler) MyRecipes(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	recipes, err := h.recipes.ListByAuthor(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[RecipeHandler] failed to list author recipes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch recipes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	recipe, err := h.recipes.GetRecipe(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
		return
	}

	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	if err := h.recipes.DeleteRecipe(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
			return
		}
		log.Printf("[RecipeHandler] failed to delete recipe: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete recipe"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "recipe deleted successfully", "id": id.String()})
}

// preferredLanguage extracts the primary tag of the Accept-Language header,
// defaulting to English.
func preferredLanguage(c *gin.Context) string {
	header := c.GetHeader("Accept-Language")
	if header == "" {
		return "en"
	}
	primary := strings.TrimSpace(strings.Split(header, ",")[0])
	if i := strings.Index(primary, ";"); i >= 0 {
		primary = primary[:i]
	}
	if primary == "" || primary == "*" {
		return "en"
	}
	return primary
}
