package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/cookshare/internal/auth"
	"github.com/sakif/cookshare/internal/model"
	"github.com/sakif/cookshare/internal/service"
)

// RecipeHandler exposes the recipe service over HTTP. It only parses
// requests and renders responses; every rule lives in the service.
type RecipeHandler struct {
	recipes *service.RecipeService
	logger  *slog.Logger
}

func NewRecipeHandler(recipes *service.RecipeService, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, logger: logger}
}

// RecipeResponse wraps a single recipe.
type RecipeResponse struct {
	Recipe *model.Recipe `json:"recipe"`
}

// UpdateResponse is returned by a successful update.
type UpdateResponse struct {
	Message string        `json:"message"`
	Recipe  *model.Recipe `json:"recipe"`
}

// HandleList returns one page of published recipes.
//
// HTTP: GET /api/recipes?page=1&limit=10&search=kimchi&author=abc
//
// Unparseable page or limit values fall back to their defaults.
func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	author := q.Get("author")
	if author == "" {
		author = q.Get("authorId")
	}

	result, err := h.recipes.List(r.Context(), service.ListQuery{
		Page:     page,
		Limit:    limit,
		Search:   q.Get("search"),
		AuthorID: author,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleGet returns one published recipe.
//
// HTTP: GET /api/recipes/{id}
func (h *RecipeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	recipe, err := h.recipes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RecipeResponse{Recipe: recipe})
}

// HandleCreate stores a new recipe owned by the caller.
//
// HTTP: POST /api/recipes
//
// Writes check the identity before parsing the body, so anonymous callers
// get 401 even with a malformed body.
func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "login required"})
		return
	}

	var in service.RecipeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	recipe, err := h.recipes.Create(r.Context(), caller, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, RecipeResponse{Recipe: recipe})
}

// HandleUpdate replaces a recipe the caller owns.
//
// HTTP: PUT /api/recipes/{id}
func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if caller == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "login required"})
		return
	}

	var in service.RecipeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	recipe, err := h.recipes.Update(r.Context(), caller, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UpdateResponse{Message: "Recipe updated successfully", Recipe: recipe})
}

// HandleDelete removes a recipe for its author or an admin.
//
// HTTP: DELETE /api/recipes/{id}
func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if err := h.recipes.Delete(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Recipe deleted successfully"})
}
