package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/foodia/backend/config"
	"github.com/foodia/backend/internal/models"
	"github.com/foodia/backend/internal/service"
)

const testJWTSecret = "test-secret"

func setupAPIDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	stmts := []string{
		`CREATE TABLE users (
           id TEXT PRIMARY KEY,
           created_at DATETIME,
           updated_at DATETIME,
           deleted_at DATETIME,
           name TEXT,
           email TEXT UNIQUE,
           password_hash TEXT,
           auth_provider TEXT,
           daily_generation_count INTEGER NOT NULL DEFAULT 0,
           rewarded_generations INTEGER NOT NULL DEFAULT 0,
           last_generation_date DATETIME
   );`,
		`CREATE TABLE recipes (
           id TEXT PRIMARY KEY,
           created_at DATETIME,
           updated_at DATETIME,
           deleted_at DATETIME,
           title TEXT,
           description TEXT,
           cooking_time INTEGER,
           difficulty TEXT,
           cost_level TEXT,
           cuisine TEXT,
           nutrition_calories REAL,
           nutrition_protein REAL,
           nutrition_fat REAL,
           nutrition_carbs REAL,
           ingredients TEXT,
           steps TEXT,
           image_url TEXT,
           author_id TEXT,
           embedding TEXT
   );`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}
	return db
}

func seedTestUser(t *testing.T, db *gorm.DB, daily, rewarded int) *models.User {
	now := time.Now()
	user := &models.User{
		ID:                   uuid.New(),
		Name:                 "Test User",
		Email:                uuid.New().String() + "@example.com",
		AuthProvider:         models.AuthProviderLocal,
		DailyGenerationCount: daily,
		RewardedGenerations:  rewarded,
		LastGenerationDate:   &now,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

const validModelRecipe = `{
   "title": "Pad Thai",
   "description": "Classic noodles",
   "cookingTime": 30,
   "difficulty": "medium",
   "costLevel": "medium",
   "cuisine": "thai",
   "nutritionalInfo": {"calories": 500, "protein": 25, "fat": 18, "carbs": 60},
   "ingredients": [{"name": "rice noodles", "quantity": 200, "unit": "g"}],
   "steps": [{"stepNumber": 1, "description": "Soak the noodles"}]
}`

// llmStub serves a canned chat-completions response and counts calls.
type llmStub struct {
	server *httptest.Server
	calls  int
}

func newLLMStub(content string, status int) *llmStub {
	stub := &llmStub{}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.calls++
		if status != http.StatusOK {
			http.Error(w, "upstream error", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	return stub
}

func newPexelsStub(photoURL string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if photoURL == "" {
			_, _ = w.Write([]byte(`{"photos":[]}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"photos":[{"src":{"medium":"%s"}}]}`, photoURL)
	}))
}

func newTranslateStub() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `[[["%s","%s",null,null]],null,"en"]`,
			r.URL.Query().Get("q"), r.URL.Query().Get("q"))
	}))
}

type recipeTestEnv struct {
	db     *gorm.DB
	router *gin.Engine
	auth   *service.AuthService
}

func setupRecipeRouter(t *testing.T, llmURL, pexelsURL, translateURL, chargePolicy string) *recipeTestEnv {
	gin.SetMode(gin.TestMode)
	db := setupAPIDB(t)

	cfg := &config.Config{
		OpenAIAPIKey:    "test-key",
		OpenAIAPIURL:    llmURL,
		OpenAIModel:     "gpt-4o-mini",
		PexelsAPIKey:    "pexels-key",
		PexelsAPIURL:    pexelsURL,
		TranslateAPIURL: translateURL,
	}

	authService := service.NewAuthService(db, testJWTSecret)
	quotaService := service.NewQuotaService(db, 3)
	recipeService := service.NewRecipeService(db)
	imageService := service.NewImageService(cfg, nil)
	llmService, err := service.NewLLMService(cfg)
	if err != nil {
		t.Fatalf("failed to create llm service: %v", err)
	}

	handler := NewRecipeHandler(recipeService, quotaService, llmService, imageService, authService, nil, chargePolicy)

	router := gin.New()
	v1 := router.Group("/api/v1")
	handler.RegisterRoutes(v1)

	return &recipeTestEnv{db: db, router: router, auth: authService}
}

func (e *recipeTestEnv) request(t *testing.T, method, path string, body []byte, user *models.User) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := e.auth.GenerateToken(user.ID)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestGenerateRecipeEndToEnd(t *testing.T) {
	llm := newLLMStub("```json\n"+validModelRecipe+"\n```", http.StatusOK)
	defer llm.server.Close()
	pexels := newPexelsStub("https://images.example.com/padthai.jpg")
	defer pexels.Close()
	translate := newTranslateStub()
	defer translate.Close()

	env := setupRecipeRouter(t, llm.server.URL, pexels.URL, translate.URL, config.ChargeOnAttempt)
	user := seedTestUser(t, env.db, 3, 0)

	w := env.request(t, http.MethodPost, "/api/v1/recipes/generate", []byte(`{"selectedCuisines":["thai"]}`), user)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Recipe models.Recipe `json:"recipe"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Recipe.Title != "Pad Thai" {
		t.Errorf("expected title 'Pad Thai', got %q", resp.Recipe.Title)
	}
	if resp.Recipe.ImageURL == nil || *resp.Recipe.ImageURL != "https://images.example.com/padthai.jpg" {
		t.Errorf("expected enriched image URL, got %v", resp.Recipe.ImageURL)
	}
	if resp.Recipe.AuthorID == nil || *resp.Recipe.AuthorID != user.ID {
		t.Errorf("expected author %s, got %v", user.ID, resp.Recipe.AuthorID)
	}

	var stored models.Recipe
	if err := env.db.First(&stored, "id = ?", resp.Recipe.ID).Error; err != nil {
		t.Fatalf("recipe not persisted: %v", err)
	}

	var gotUser models.User
	if err := env.db.First(&gotUser, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if gotUser.DailyGenerationCount != 2 {
		t.Errorf("expected 2 credits remaining, got %d", gotUser.DailyGenerationCount)
	}
}

func TestGenerateRecipeQuotaExhausted(t *testing.T) {
	llm := newLLMStub(validModelRecipe, http.StatusOK)
	defer llm.server.Close()
	pexels := newPexelsStub("")
	defer pexels.Close()
	translate := newTranslateStub()
	defer translate.Close()

	env := setupRecipeRouter(t, llm.server.URL, pexels.URL, translate.URL, config.ChargeOnAttempt)
	user := seedTestUser(t, env.db, 0, 0)

	w := env.request(t, http.MethodPost, "/api/v1/recipes/generate", []byte(`{}`), user)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", w.Code, w.Body.String())
	}
	if llm.calls != 0 {
		t.Errorf("expected no model calls when quota is exhausted, got %d", llm.calls)
	}

	var count int64
	env.db.Model(&models.Recipe{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no recipes persisted, got %d", count)
	}
}

func TestGenerateRecipeImageFailureNonFatal(t *testing.T) {
	llm := newLLMStub(validModelRecipe, http.StatusOK)
	defer llm.server.Close()
	pexels := newPexelsStub("")
	defer pexels.Close()
	translate := newTranslateStub()
	defer translate.Close()

	env := setupRecipeRouter(t, llm.server.URL, pexels.URL, translate.URL, config.ChargeOnAttempt)
	user := seedTestUser(t, env.db, 3, 0)

	w := env.request(t, http.MethodPost, "/api/v1/recipes/generate", []byte(`{}`), user)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Recipe models.Recipe `json:"recipe"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Recipe.ImageURL != nil {
		t.Errorf("expected nil image URL, got %v", *resp.Recipe.ImageURL)
	}
}

func TestGenerateRecipeMalformedOutput(t *testing.T) {
	llm := newLLMStub("I will not produce JSON", http.StatusOK)
	defer llm.server.Close()
	pexels := newPexelsStub("")
	defer pexels.Close()
	translate := newTranslateStub()
	defer translate.Close()

	env := setupRecipeRouter(t, llm.server.URL, pexels.URL, translate.URL, config.ChargeOnAttempt)
	user := seedTestUser(t, env.db, 3, 0)

	w := env.request(t, http.MethodPost, "/api/v1/recipes/generate", []byte(`{}`), user)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	env.db.Model(&models.Recipe{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no recipes persisted, got %d", count)
	}

	// Default policy charges the attempt.
	var gotUser models.User
	if err := env.db.First(&gotUser, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if gotUser.DailyGenerationCount != 2 {
		t.Errorf("expected credit kept consumed, got %d remaining", gotUser.DailyGenerationCount)
	}
}

func TestGenerateRecipeChargeOnSuccessRefunds(t *testing.T) {
	llm := newLLMStub("not json at all", http.StatusOK)
	defer llm.server.Close()
	pexels := newPexelsStub("")
	defer pexels.Close()
	translate := newTranslateStub()
	defer translate.Close()

	env := setupRecipeRouter(t, llm.server.URL, pexels.URL, translate.URL, config.ChargeOnSuccess)
	user := seedTestUser(t, env.db, 3, 0)

	w := env.request(t, http.MethodPost, "/api/v1/recipes/generate", []byte(`{}`), user)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", w.Code, w.Body.String())
	}

	var gotUser models.User
	if err := env.db.First(&gotUser, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if gotUser.DailyGenerationCount != 3 {
		t.Errorf("expected refunded credit, got %d remaining", gotUser.DailyGenerationCount)
	}
}

func TestGenerateRecipeUpstreamError(t *testing.T) {
	llm := newLLMStub("", http.StatusInternalServerError)
	defer llm.server.Close()
	pexels := newPexelsStub("")
	defer pexels.Close()
	translate := newTranslateStub()
	defer translate.Close()

	env := setupRecipeRouter(t, llm.server.URL, pexels.URL, translate.URL, config.ChargeOnAttempt)
	user := seedTestUser(t, env.db, 3, 0)

	w := env.request(t, http.MethodPost, "/api/v1/recipes/generate", []byte(`{}`), user)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGenerateRecipeUnauthorized(t *testing.T) {
	llm := newLLMStub(validModelRecipe, http.StatusOK)
	defer llm.server.Close()
	pexels := newPexelsStub("")
	defer pexels.Close()
	translate := newTranslateStub()
	defer translate.Close()

	env := setupRecipeRouter(t, llm.server.URL, pexels.URL, translate.URL, config.ChargeOnAttempt)

	w := env.request(t, http.MethodPost, "/api/v1/recipes/generate", []byte(`{}`), nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d: %s", w.Code, w.Body.String())
	}
	if llm.calls != 0 {
		t.Errorf("expected no model calls without auth, got %d", llm.calls)
	}
}

func TestGenerateRecipeRejectsUnknownFields(t *testing.T) {
	llm := newLLMStub(validModelRecipe, http.StatusOK)
	defer llm.server.Close()
	pexels := newPexelsStub("")
	defer pexels.Close()
	translate := newTranslateStub()
	defer translate.Close()

	env := setupRecipeRouter(t, llm.server.URL, pexels.URL, translate.URL, config.ChargeOnAttempt)
	user := seedTestUser(t, env.db, 3, 0)

	w := env.request(t, http.MethodPost, "/api/v1/recipes/generate", []byte(`{"bogusField": true}`), user)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateRecipeValidation(t *testing.T) {
	llm := newLLMStub(validModelRecipe, http.StatusOK)
	defer llm.server.Close()
	pexels := newPexelsStub("")
	defer pexels.Close()
	translate := newTranslateStub()
	defer translate.Close()

	env := setupRecipeRouter(t, llm.server.URL, pexels.URL, translate.URL, config.ChargeOnAttempt)
	user := seedTestUser(t, env.db, 3, 0)

	w := env.request(t, http.MethodPost, "/api/v1/recipes", []byte(validModelRecipe), user)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	invalid := `{"title": "No Steps", "description": "d", "cookingTime": 5, "difficulty": "easy",
       "costLevel": "low", "cuisine": "any",
       "nutritionalInfo": {"calories": 1, "protein": 1, "fat": 1, "carbs": 1},
       "ingredients": [{"name": "x", "quantity": 1, "unit": "g"}], "steps": []}`
	w = env.request(t, http.MethodPost, "/api/v1/recipes", []byte(invalid), user)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetAndDeleteRecipe(t *testing.T) {
	llm := newLLMStub(validModelRecipe, http.StatusOK)
	defer llm.server.Close()
	pexels := newPexelsStub("")
	defer pexels.Close()
	translate := newTranslateStub()
	defer translate.Close()

	env := setupRecipeRouter(t, llm.server.URL, pexels.URL, translate.URL, config.ChargeOnAttempt)
	user := seedTestUser(t, env.db, 3, 0)

	w := env.request(t, http.MethodPost, "/api/v1/recipes", []byte(validModelRecipe), user)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var created models.Recipe
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	w = env.request(t, http.MethodGet, "/api/v1/recipes/"+created.ID.String(), nil, user)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.request(t, http.MethodDelete, "/api/v1/recipes/"+created.ID.String(), nil, user)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.request(t, http.MethodGet, "/api/v1/recipes/"+created.ID.String(), nil, user)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", w.Code)
	}

	w = env.request(t, http.MethodDelete, "/api/v1/recipes/"+uuid.New().String(), nil, user)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for missing recipe, got %d", w.Code)
	}
}

func TestListAndMineRecipes(t *testing.T) {
	llm := newLLMStub(validModelRecipe, http.StatusOK)
	defer llm.server.Close()
	pexels := newPexelsStub("")
	defer pexels.Close()
	translate := newTranslateStub()
	defer translate.Close()

	env := setupRecipeRouter(t, llm.server.URL, pexels.URL, translate.URL, config.ChargeOnAttempt)
	author := seedTestUser(t, env.db, 3, 0)
	other := seedTestUser(t, env.db, 3, 0)

	w := env.request(t, http.MethodPost, "/api/v1/recipes", []byte(validModelRecipe), author)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	w = env.request(t, http.MethodGet, "/api/v1/recipes", nil, other)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var listResp struct {
		Recipes []models.Recipe `json:"recipes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(listResp.Recipes) != 1 {
		t.Errorf("expected 1 recipe listed, got %d", len(listResp.Recipes))
	}

	w = env.request(t, http.MethodGet, "/api/v1/recipes/mine", nil, other)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(listResp.Recipes) != 0 {
		t.Errorf("expected no recipes for non-author, got %d", len(listResp.Recipes))
	}
}
