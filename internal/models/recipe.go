package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Ingredient is one entry of a recipe's ingredient list. Quantity is always
// numeric; "to taste" ingredients carry quantity 1 and unit "to taste".
type Ingredient struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Step is one entry of a recipe's step list, numbered consecutively from 1.
type Step struct {
	StepNumber  int    `json:"stepNumber"`
	Description string `json:"description"`
}

// NutritionalInfo holds the per-recipe macro breakdown.
type NutritionalInfo struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// IngredientList stores ingredients as a JSONB column.
type IngredientList []Ingredient

// Value implements the driver.Valuer interface
func (l IngredientList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface
func (l *IngredientList) Scan(value interface{}) error {
	if value == nil {
		*l = IngredientList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// StepList stores steps as a JSONB column.
type StepList []Step

// Value implements the driver.Valuer interface
func (l StepList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface
func (l *StepList) Scan(value interface{}) error {
	if value == nil {
		*l = StepList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// Recipe is a generated-or-authored culinary artifact. ImageURL is nil when
// image lookup failed. AuthorID is nil for the anonymous direct-create path.
type Recipe struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
	Title           string          `gorm:"size:255;not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	CookingTime     int             `json:"cookingTime"`
	Difficulty      string          `gorm:"size:50" json:"difficulty"`
	CostLevel       string          `gorm:"size:50" json:"costLevel"`
	Cuisine         string          `gorm:"size:50" json:"cuisine"`
	NutritionalInfo NutritionalInfo `gorm:"embedded;embeddedPrefix:nutrition_" json:"nutritionalInfo"`
	Ingredients     IngredientList  `gorm:"type:jsonb;not null;default:'[]'" json:"ingredients"`
	Steps           StepList        `gorm:"type:jsonb;not null;default:'[]'" json:"steps"`
	ImageURL        *string         `gorm:"size:512" json:"imageUrl"`
	AuthorID        *uuid.UUID      `gorm:"type:uuid;index" json:"authorId,omitempty"`
	Embedding       pgvector.Vector `gorm:"type:vector(3)" json:"-"`
}

func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
