package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/cookshare/internal/auth"
	"github.com/sakif/cookshare/internal/handler"
	"github.com/sakif/cookshare/internal/model"
	"github.com/sakif/cookshare/internal/repository"
	"github.com/sakif/cookshare/internal/repository/sqlite"
	"github.com/sakif/cookshare/internal/service"
)

// testAPI is the real stack on an in-memory database, minus the server's
// rate limiter and CORS.
type testAPI struct {
	router http.Handler
	db     *sqlite.DB
	tokens *auth.TokenService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-32-chars!!!!")
	require.NoError(t, err)

	recipes := handler.NewRecipeHandler(service.NewRecipeService(db, logger), logger)
	authSvc := service.NewAuthService(db, tokens, auth.NewPasswordServiceWithCost(4), logger)
	authH := handler.NewAuthHandler(authSvc, nil, tokens.TTL(), false, logger)

	r := chi.NewRouter()
	r.Post("/auth/register", authH.HandleRegister)
	r.Post("/auth/login", authH.HandleLogin)
	r.Post("/auth/logout", authH.HandleLogout)
	r.Get("/healthz", handler.NewHealthHandler(db).HandleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))
		r.With(auth.RequireAuth(tokens)).Get("/me", authH.HandleMe)
		r.Get("/recipes", recipes.HandleList)
		r.Post("/recipes", recipes.HandleCreate)
		r.Get("/recipes/{id}", recipes.HandleGet)
		r.Put("/recipes/{id}", recipes.HandleUpdate)
		r.Delete("/recipes/{id}", recipes.HandleDelete)
	})

	return &testAPI{router: r, db: db, tokens: tokens}
}

// user creates an account directly in storage and returns a bearer token.
func (a *testAPI) user(t *testing.T, email string, role model.Role) (*model.User, string) {
	t.Helper()
	u := &model.User{Email: email, Name: email, Role: role}
	require.NoError(t, a.db.CreateUser(context.Background(), u))
	token, err := a.tokens.Generate(u)
	require.NoError(t, err)
	return u, token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

type recipeBody struct {
	Recipe  model.Recipe `json:"recipe"`
	Message string       `json:"message"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func kimchi() map[string]any {
	return map[string]any{
		"title":       "Kimchi Jjigae",
		"description": "Spicy kimchi stew",
		"servings":    2,
		"prepTime":    10,
		"cookTime":    25,
		"difficulty":  "Easy",
		"category":    "Main",
		"ingredients": []map[string]string{
			{"name": "Kimchi", "amount": "2", "unit": "cups"},
			{"name": "Pork belly", "amount": "200", "unit": "g"},
			{"name": "Tofu", "amount": "1", "unit": "block"},
		},
		"steps": []map[string]string{
			{"instruction": "Fry the pork"},
			{"instruction": "Add kimchi", "image": "https://img/kimchi.jpg"},
			{"instruction": "Simmer"},
		},
	}
}

func (a *testAPI) createKimchi(t *testing.T, token string) model.Recipe {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/api/recipes", token, kimchi())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[recipeBody](t, rr).Recipe
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreateRecipe(t *testing.T) {
	api := newTestAPI(t)
	alice, token := api.user(t, "alice@cookshare.com", model.RoleUser)

	r := api.createKimchi(t, token)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, alice.ID, r.AuthorID)
	assert.True(t, r.Published)
	require.Len(t, r.Ingredients, 3)
	require.Len(t, r.Steps, 3)
	assert.Equal(t, 0, r.Ingredients[0].Order)
	assert.Equal(t, 2, r.Steps[2].Order)
	assert.Equal(t, model.Counts{}, r.Counts)
	require.NotNil(t, r.Author)
	assert.Equal(t, "alice@cookshare.com", r.Author.Email)
	require.NotNil(t, r.DisplayImage)
	assert.Equal(t, "https://img/kimchi.jpg", *r.DisplayImage)
}

func TestCreateRecipe_Errors(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.user(t, "alice@cookshare.com", model.RoleUser)

	t.Run("anonymous", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/recipes", "", kimchi())
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid token is anonymous", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/recipes", "garbage", kimchi())
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/recipes", token, `{"title":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("validation details", func(t *testing.T) {
		body := kimchi()
		body["title"] = ""
		body["servings"] = 0
		rr := api.do(t, http.MethodPost, "/api/recipes", token, body)
		require.Equal(t, http.StatusBadRequest, rr.Code)

		e := decode[errorBody](t, rr)
		assert.NotEmpty(t, e.Error)
		fields := []string{}
		for _, d := range e.Details {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"title", "servings"}, fields)
	})
}

// =========================================================================
// READ / LIST
// =========================================================================

func TestGetRecipe(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.user(t, "alice@cookshare.com", model.RoleUser)
	created := api.createKimchi(t, token)

	rr := api.do(t, http.MethodGet, "/api/recipes/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[recipeBody](t, rr).Recipe
	assert.Equal(t, "Kimchi Jjigae", got.Title)
	assert.Len(t, got.Steps, 3)

	rr = api.do(t, http.MethodGet, "/api/recipes/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decode[errorBody](t, rr).Error, "not found")
}

func TestListRecipes(t *testing.T) {
	api := newTestAPI(t)
	_, aliceTok := api.user(t, "alice@cookshare.com", model.RoleUser)
	bob, bobTok := api.user(t, "bob@cookshare.com", model.RoleUser)

	api.createKimchi(t, aliceTok)
	for i := 0; i < 3; i++ {
		body := map[string]any{"title": fmt.Sprintf("Pancakes %d", i), "image": "https://img/p.jpg"}
		rr := api.do(t, http.MethodPost, "/api/recipes", bobTok, body)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	type listBody struct {
		Recipes    []model.Recipe     `json:"recipes"`
		Pagination service.Pagination `json:"pagination"`
	}

	rr := api.do(t, http.MethodGet, "/api/recipes?page=2&limit=3", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[listBody](t, rr)
	assert.Equal(t, service.Pagination{Page: 2, Limit: 3, Total: 4, TotalPages: 2}, page.Pagination)
	require.Len(t, page.Recipes, 1)
	assert.Equal(t, "Kimchi Jjigae", page.Recipes[0].Title, "oldest recipe is last")
	require.NotNil(t, page.Recipes[0].DisplayImage, "falls back to the step image")

	rr = api.do(t, http.MethodGet, "/api/recipes?search=pancake&author="+bob.ID, "", nil)
	page = decode[listBody](t, rr)
	assert.Equal(t, 3, page.Pagination.Total)

	rr = api.do(t, http.MethodGet, "/api/recipes?page=abc&limit=-4", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page = decode[listBody](t, rr)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 10, page.Pagination.Limit)

	rr = api.do(t, http.MethodGet, "/api/recipes?page=9223372036854775807&limit=10", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page = decode[listBody](t, rr)
	assert.Equal(t, repository.MaxPage, page.Pagination.Page)
	assert.Empty(t, page.Recipes, "a page far past the end is empty, not page 1")
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdateRecipe(t *testing.T) {
	api := newTestAPI(t)
	_, aliceTok := api.user(t, "alice@cookshare.com", model.RoleUser)
	_, bobTok := api.user(t, "bob@cookshare.com", model.RoleUser)
	_, adminTok := api.user(t, "chef@cookshare.com", model.RoleAdmin)
	created := api.createKimchi(t, aliceTok)
	path := "/api/recipes/" + created.ID

	replacement := map[string]any{
		"title": "Quick Kimchi Jjigae",
		"steps": []map[string]string{{"instruction": "Heat and eat"}},
	}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"other user", bobTok, http.StatusForbidden},
		{"admin cannot edit", adminTok, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, http.MethodPut, path, tt.token, replacement)
			assert.Equal(t, tt.want, rr.Code)
		})
	}

	rr := api.do(t, http.MethodPut, "/api/recipes/missing", aliceTok, replacement)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodPut, path, aliceTok, replacement)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode[recipeBody](t, rr)
	assert.Equal(t, "Recipe updated successfully", body.Message)
	assert.Equal(t, "Quick Kimchi Jjigae", body.Recipe.Title)
	assert.Empty(t, body.Recipe.Ingredients)
	require.Len(t, body.Recipe.Steps, 1)
	assert.Equal(t, 0, body.Recipe.Steps[0].Order)
	assert.Nil(t, body.Recipe.DisplayImage)
	assert.Equal(t, created.AuthorID, body.Recipe.AuthorID)
	assert.Equal(t, created.CreatedAt.Unix(), body.Recipe.CreatedAt.Unix())

	// the emptied collection is still sent, as an empty array
	rr = api.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	raw := decode[struct {
		Recipe map[string]json.RawMessage `json:"recipe"`
	}](t, rr)
	require.Contains(t, raw.Recipe, "ingredients")
	assert.JSONEq(t, `[]`, string(raw.Recipe["ingredients"]))
	require.Contains(t, raw.Recipe, "steps")
	assert.Len(t, decodeRaw[[]model.Step](t, raw.Recipe["steps"]), 1)
}

func decodeRaw[T any](t *testing.T, msg json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg, &v), string(msg))
	return v
}

func TestCreateRecipe_EmptyCollectionsAreArrays(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.user(t, "alice@cookshare.com", model.RoleUser)

	rr := api.do(t, http.MethodPost, "/api/recipes", token, map[string]any{"title": "Toast"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"ingredients":[]`)
	assert.Contains(t, rr.Body.String(), `"steps":[]`)
}

func TestUpdateRecipe_ConcurrentReplacesDoNotInterleave(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.user(t, "alice@cookshare.com", model.RoleUser)
	path := "/api/recipes/" + api.createKimchi(t, token).ID

	const writers = 20
	var wg sync.WaitGroup
	codes := make([]int, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ings := make([]map[string]string, i%4+1)
			for k := range ings {
				ings[k] = map[string]string{"name": fmt.Sprintf("w%d-%d", i, k), "amount": "1"}
			}
			payload, _ := json.Marshal(map[string]any{
				"title":       fmt.Sprintf("w%d", i),
				"ingredients": ings,
				"steps":       []map[string]string{{"instruction": fmt.Sprintf("w%d", i)}},
			})
			req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(payload))
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			api.router.ServeHTTP(rr, req)
			codes[i] = rr.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "writer %d", i)
	}

	rr := api.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[recipeBody](t, rr).Recipe

	var winner int
	_, err := fmt.Sscanf(got.Title, "w%d", &winner)
	require.NoError(t, err, got.Title)
	require.Len(t, got.Ingredients, winner%4+1, "ingredient count of writer %d", winner)
	for k, ing := range got.Ingredients {
		assert.Equal(t, fmt.Sprintf("w%d-%d", winner, k), ing.Name)
		assert.Equal(t, k, ing.Order)
	}
	require.Len(t, got.Steps, 1)
	assert.Equal(t, got.Title, got.Steps[0].Instruction)
}

// =========================================================================
// DELETE
// =========================================================================

func TestDeleteRecipe(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceTok := api.user(t, "alice@cookshare.com", model.RoleUser)
	_, bobTok := api.user(t, "bob@cookshare.com", model.RoleUser)
	_, adminTok := api.user(t, "chef@cookshare.com", model.RoleAdmin)

	first := api.createKimchi(t, aliceTok)
	second := api.createKimchi(t, aliceTok)
	require.NoError(t, api.db.AddLike(context.Background(), alice.ID, first.ID))

	rr := api.do(t, http.MethodDelete, "/api/recipes/"+first.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = api.do(t, http.MethodDelete, "/api/recipes/"+first.ID, bobTok, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(t, http.MethodGet, "/api/recipes/"+first.ID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	intact := decode[recipeBody](t, rr).Recipe
	assert.Len(t, intact.Ingredients, 3, "rejected delete keeps ingredients")
	assert.Len(t, intact.Steps, 3, "rejected delete keeps steps")
	assert.Equal(t, 1, intact.Counts.Likes)

	rr = api.do(t, http.MethodDelete, "/api/recipes/"+first.ID, aliceTok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Recipe deleted successfully", decode[handler.MessageResponse](t, rr).Message)

	rr = api.do(t, http.MethodGet, "/api/recipes/"+first.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodDelete, "/api/recipes/"+second.ID, adminTok, nil)
	assert.Equal(t, http.StatusOK, rr.Code, "admins may delete any recipe")

	rr = api.do(t, http.MethodDelete, "/api/recipes/"+second.ID, adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =========================================================================
// AUTH
// =========================================================================

func TestRegisterLoginMe(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "test@cookshare.com", "name": "Test", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = api.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "test@cookshare.com", "name": "Again", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "test@cookshare.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "test@cookshare.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	session := rr.Result().Cookies()[0]

	// the cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(session)
	me := httptest.NewRecorder()
	api.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), "test@cookshare.com")

	rr = api.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = api.do(t, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Less(t, rr.Result().Cookies()[0].MaxAge, 0)
}

func TestExpiredTokenIsAnonymous(t *testing.T) {
	api := newTestAPI(t)
	u, _ := api.user(t, "alice@cookshare.com", model.RoleUser)
	expired, err := api.tokens.GenerateWithDuration(u, -time.Minute)
	require.NoError(t, err)

	rr := api.do(t, http.MethodPost, "/api/recipes", expired, kimchi())
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
