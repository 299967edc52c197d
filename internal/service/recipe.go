package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foodia/backend/internal/models"
)

// ErrInvalidRecipe is returned when parsed model output (or a direct-create
// body) violates the recipe schema. Nothing is persisted in that case.
var ErrInvalidRecipe = errors.New("recipe failed validation")

// RecipeService handles recipe persistence and queries.
type RecipeService struct {
	db *gorm.DB
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB) *RecipeService {
	return &RecipeService{db: db}
}

// ValidateRecipeData enforces the recipe schema: all fields present,
// non-empty ingredient and step lists, numeric quantities, non-empty units,
// steps numbered consecutively from 1.
func ValidateRecipeData(data *RecipeData) error {
	if strings.TrimSpace(data.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRecipe)
	}
	if strings.TrimSpace(data.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidRecipe)
	}
	if data.CookingTime <= 0 {
		return fmt.Errorf("%w: cookingTime must be a positive integer", ErrInvalidRecipe)
	}
	if strings.TrimSpace(data.Difficulty) == "" {
		return fmt.Errorf("%w: difficulty is required", ErrInvalidRecipe)
	}
	if strings.TrimSpace(data.CostLevel) == "" {
		return fmt.Errorf("%w: costLevel is required", ErrInvalidRecipe)
	}
	if strings.TrimSpace(data.Cuisine) == "" {
		return fmt.Errorf("%w: cuisine is required", ErrInvalidRecipe)
	}
	if len(data.Ingredients) == 0 {
		return fmt.Errorf("%w: ingredients must not be empty", ErrInvalidRecipe)
	}
	for i, ing := range data.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return fmt.Errorf("%w: ingredient %d has no name", ErrInvalidRecipe, i+1)
		}
		if ing.Quantity <= 0 {
			return fmt.Errorf("%w: ingredient %q has non-positive quantity", ErrInvalidRecipe, ing.Name)
		}
		if strings.TrimSpace(ing.Unit) == "" {
			return fmt.Errorf("%w: ingredient %q has no unit", ErrInvalidRecipe, ing.Name)
		}
	}
	if len(data.Steps) == 0 {
		return fmt.Errorf("%w: steps must not be empty", ErrInvalidRecipe)
	}
	for i, step := range data.Steps {
		if step.StepNumber != i+1 {
			return fmt.Errorf("%w: steps must be numbered consecutively from 1", ErrInvalidRecipe)
		}
		if strings.TrimSpace(step.Description) == "" {
			return fmt.Errorf("%w: step %d has no description", ErrInvalidRecipe, i+1)
		}
	}
	return nil
}

// RecipeFromData assembles a persistable recipe from parsed model output, the
// resolved image URL (possibly nil) and the authenticated author.
func RecipeFromData(data *RecipeData, imageURL *string, authorID *uuid.UUID) *models.Recipe {
	return &models.Recipe{
		Title:           data.Title,
		Description:     data.Description,
		CookingTime:     data.CookingTime,
		Difficulty:      data.Difficulty,
		CostLevel:       data.CostLevel,
		Cuisine:         data.Cuisine,
		NutritionalInfo: data.NutritionalInfo,
		Ingredients:     models.IngredientList(data.Ingredients),
		Steps:           models.StepList(data.Steps),
		ImageURL:        imageURL,
		AuthorID:        authorID,
		Embedding:       GenerateEmbedding(data.Title + " " + data.Description),
	}
}

// CreateRecipe persists a recipe.
func (s *RecipeService) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	return s.db.WithContext(ctx).Create(recipe).Error
}

// GetRecipe retrieves a recipe by ID
func (s *RecipeService) GetRecipe(ctx context.Context, id uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

// ListRecipes lists all recipes. A non-empty search query orders by embedding
// distance on postgres, with a LIKE fallback elsewhere.
func (s *RecipeService) ListRecipes(ctx context.Context, search string) ([]models.Recipe, error) {
	var recipes []models.Recipe

	query := s.db.WithContext(ctx)
	if search != "" {
		if s.db.Dialector.Name() == "postgres" {
			vec := GenerateEmbedding(search)
			query = query.Clauses(clause.OrderBy{
				Expression: clause.Expr{SQL: "embedding <-> ?", Vars: []interface{}{vec}},
			})
		} else {
			like := "%" + strings.ToLower(search) + "%"
			query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
		}
	}

	if err := query.Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipes, nil
}

// ListByAuthor lists the author's recipes, most recently updated first.
func (s *RecipeService) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.Recipe, error) {
	var recipes []models.Recipe
	err := s.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("updated_at DESC").
		Find(&recipes).Error
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// DeleteRecipe deletes a recipe by id, returning gorm.ErrRecordNotFound when
// it does not exist.
func (s *RecipeService) DeleteRecipe(ctx context.Context, id uuid.UUID) error {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.Recipe{}, "id = ?", id).Error
}
