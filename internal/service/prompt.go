package service

import (
	"fmt"
	"strings"
)

// GenerateRecipeRequest carries the user's generation constraints. All fields
// are optional; absent lists render as "none" in the prompt.
type GenerateRecipeRequest struct {
	SelectedCuisines     []string `json:"selectedCuisines"`
	DietRestrictions     []string `json:"dietRestrictions"`
	ExtraAllergens       string   `json:"extraAllergens"`
	IngredientsToInclude []string `json:"ingredientsToInclude"`
	IngredientsToExclude []string `json:"ingredientsToExclude"`
	Time                 string   `json:"time"`
	Difficulty           string   `json:"difficulty"`
	Cost                 string   `json:"cost"`
	Servings             int      `json:"servings"`
	Purpose              string   `json:"purpose"`
	ExtraDetails         string   `json:"extraDetails"`
}

const recipeSchemaBlock = `{
  "title": "string",
  "description": "string",
  "cookingTime": 30,
  "difficulty": "string",
  "costLevel": "string",
  "cuisine": "string",
  "nutritionalInfo": {
    "calories": 300,
    "protein": 20,
    "fat": 10,
    "carbs": 50
  },
  "ingredients": [
    {
      "name": "Ingredient 1",
      "quantity": 100,
      "unit": "g"
    }
  ],
  "steps": [
    {
      "stepNumber": 1,
      "description": "Step description"
    }
  ]
}`

// BuildRecipePrompt renders the constraints into the instruction sent to the
// model. The render is byte-stable for identical inputs: no maps, no
// randomness, input list order preserved.
func BuildRecipePrompt(req *GenerateRecipeRequest, language string) string {
	if language == "" {
		language = "en"
	}

	var b strings.Builder
	b.WriteString("You are a culinary assistant. Generate a recipe that satisfies the following parameters:\n")
	fmt.Fprintf(&b, "- Cuisine types: %s.\n", joinOr(req.SelectedCuisines, "no specific cuisines"))
	fmt.Fprintf(&b, "- Dietary restrictions: %s.\n", joinOr(req.DietRestrictions, "no dietary restrictions"))
	fmt.Fprintf(&b, "- Extra allergens: %s.\n", orDefault(req.ExtraAllergens, "none"))
	fmt.Fprintf(&b, "- Ingredients to include: %s.\n", joinOr(req.IngredientsToInclude, "none"))
	fmt.Fprintf(&b, "- Ingredients to exclude: %s.\n", joinOr(req.IngredientsToExclude, "none"))
	fmt.Fprintf(&b, "- Preparation time preference: %s.\n", orDefault(req.Time, "no preference"))
	fmt.Fprintf(&b, "- Difficulty level: %s.\n", orDefault(req.Difficulty, "no preference"))
	fmt.Fprintf(&b, "- Cost level: %s.\n", orDefault(req.Cost, "no preference"))
	if req.Servings > 0 {
		fmt.Fprintf(&b, "- Servings: %d.\n", req.Servings)
	} else {
		b.WriteString("- Servings: not specified.\n")
	}
	fmt.Fprintf(&b, "- Purpose: %s.\n", orDefault(req.Purpose, "general"))
	fmt.Fprintf(&b, "- Extra details: %s.\n", orDefault(req.ExtraDetails, "none"))

	b.WriteString("\nGenerate a recipe that meets these criteria.\n\n")
	b.WriteString("Return a STRICTLY valid JSON with the following structure:\n")
	b.WriteString(recipeSchemaBlock)
	b.WriteString("\n\n")
	b.WriteString("- Do not include extra text, additional or missing brackets, or braces.\n")
	b.WriteString("- Do not use text values for \"quantity\".\n")
	b.WriteString("- If an ingredient is used \"to taste\", set \"quantity\" to 1 and \"unit\" to \"to taste\".\n")
	b.WriteString("- Do not leave the unit empty; if no specific unit applies, assign a valid default such as \"to taste\".\n")
	b.WriteString("- Every ingredient name and step description must be a non-empty string.\n")
	b.WriteString("- Number the steps consecutively starting from 1.\n")
	fmt.Fprintf(&b, "- Write all text values in the language with code %q.\n", language)
	b.WriteString("\nPlease generate the JSON with no additional text or formatting outside the strict JSON structure.\n")

	return b.String()
}

func joinOr(vals []string, fallback string) string {
	if len(vals) == 0 {
		return fallback
	}
	return strings.Join(vals, ", ")
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
