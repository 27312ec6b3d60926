// Package service holds the business rules of the application.
//
// Handlers parse HTTP and render JSON; repositories read and write rows.
// Everything in between lives here: input validation, ownership and role
// checks, the transactional recipe replace and derived view fields. Services
// depend on repository interfaces only, so tests swap in in-memory fakes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/cookshare/internal/apperror"
	"github.com/sakif/cookshare/internal/model"
	"github.com/sakif/cookshare/internal/repository"
)

// IngredientInput is one submitted ingredient line.
type IngredientInput struct {
	Name   string `json:"name" validate:"required,max=200"`
	Amount string `json:"amount" validate:"required,max=100"`
	Unit   string `json:"unit,omitempty" validate:"max=50"`
}

// StepInput is one submitted instruction.
type StepInput struct {
	Instruction string `json:"instruction" validate:"required,max=5000"`
	Image       string `json:"image,omitempty" validate:"max=2048"`
}

// RecipeInput is the full body of a create or update. Updates replace the
// whole recipe with it; there is no partial update.
//
// Servings, Difficulty and Category fall back to their defaults when
// omitted. Ingredient and step order comes from slice position.
type RecipeInput struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description,omitempty" validate:"max=5000"`
	Image       string            `json:"image,omitempty" validate:"max=2048"`
	Servings    *int              `json:"servings,omitempty" validate:"omitnil,min=1,max=1000"`
	PrepTime    *int              `json:"prepTime,omitempty" validate:"omitnil,min=0"`
	CookTime    *int              `json:"cookTime,omitempty" validate:"omitnil,min=0"`
	Difficulty  model.Difficulty  `json:"difficulty,omitempty" validate:"omitempty,oneof=Easy Medium Hard"`
	Category    model.Category    `json:"category,omitempty" validate:"omitempty,oneof=Breakfast Lunch Dinner Snack Dessert Main Side"`
	Ingredients []IngredientInput `json:"ingredients" validate:"max=100,dive"`
	Steps       []StepInput       `json:"steps" validate:"max=100,dive"`
}

// normalize trims surrounding whitespace so "   " fails required checks.
func (in *RecipeInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Image = strings.TrimSpace(in.Image)
	for i := range in.Ingredients {
		in.Ingredients[i].Name = strings.TrimSpace(in.Ingredients[i].Name)
		in.Ingredients[i].Amount = strings.TrimSpace(in.Ingredients[i].Amount)
		in.Ingredients[i].Unit = strings.TrimSpace(in.Ingredients[i].Unit)
	}
	for i := range in.Steps {
		in.Steps[i].Instruction = strings.TrimSpace(in.Steps[i].Instruction)
		in.Steps[i].Image = strings.TrimSpace(in.Steps[i].Image)
	}
}

// applyTo copies the input onto r with defaults filled in. Orders are
// 0-based positions in the submitted arrays, for create and update alike.
func (in *RecipeInput) applyTo(r *model.Recipe) {
	r.Title = in.Title
	r.Description = in.Description
	r.Image = in.Image
	r.PrepTime = in.PrepTime
	r.CookTime = in.CookTime

	r.Servings = model.DefaultServings
	if in.Servings != nil {
		r.Servings = *in.Servings
	}
	r.Difficulty = in.Difficulty
	if r.Difficulty == "" {
		r.Difficulty = model.DefaultDifficulty
	}
	r.Category = in.Category
	if r.Category == "" {
		r.Category = model.DefaultCategory
	}

	r.Ingredients = make([]model.Ingredient, len(in.Ingredients))
	for i, ing := range in.Ingredients {
		r.Ingredients[i] = model.Ingredient{Name: ing.Name, Amount: ing.Amount, Unit: ing.Unit, Order: i}
	}
	r.Steps = make([]model.Step, len(in.Steps))
	for i, s := range in.Steps {
		r.Steps[i] = model.Step{Instruction: s.Instruction, Image: s.Image, Order: i}
	}
}

// ListQuery holds the raw listing parameters. Out-of-range page values are
// replaced by defaults rather than rejected.
type ListQuery struct {
	Page     int
	Limit    int
	Search   string
	AuthorID string
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// RecipePage is one page of recipe summaries.
type RecipePage struct {
	Recipes    []model.Recipe `json:"recipes"`
	Pagination Pagination     `json:"pagination"`
}

// RecipeService is the single entry point for recipe reads and writes.
type RecipeService struct {
	repo     repository.RecipeRepository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRecipeService wires the service to a repository implementation.
func NewRecipeService(repo repository.RecipeRepository, logger *slog.Logger) *RecipeService {
	return &RecipeService{
		repo:     repo,
		validate: newValidator(),
		logger:   logger,
	}
}

func (s *RecipeService) validateInput(in *RecipeInput) error {
	in.normalize()
	return validateStruct(s.validate, in)
}

// Create validates the input and stores a new published recipe owned by the
// caller. The returned recipe is re-read from storage, so it carries the
// author summary and zero counts.
func (s *RecipeService) Create(ctx context.Context, caller *model.Identity, in RecipeInput) (*model.Recipe, error) {
	if caller == nil {
		return nil, apperror.Unauthenticated("login required")
	}
	if err := s.validateInput(&in); err != nil {
		return nil, err
	}

	recipe := &model.Recipe{
		Published: true,
		AuthorID:  caller.UserID,
	}
	in.applyTo(recipe)

	if err := s.repo.CreateRecipe(ctx, recipe); err != nil {
		return nil, fmt.Errorf("service/recipe: creating recipe: %w", err)
	}

	s.logger.Info("recipe created",
		slog.String("recipeID", recipe.ID),
		slog.String("authorID", recipe.AuthorID),
		slog.Int("ingredients", len(recipe.Ingredients)),
		slog.Int("steps", len(recipe.Steps)),
	)

	return s.load(ctx, recipe.ID)
}

// Get returns a published recipe with its children, author and counts.
// Unpublished recipes are reported as not found, even to their author.
func (s *RecipeService) Get(ctx context.Context, id string) (*model.Recipe, error) {
	recipe, err := s.repo.GetRecipeByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/recipe: getting recipe %s: %w", id, err)
	}
	if !recipe.Published {
		return nil, apperror.NotFound("recipe", id)
	}
	recipe.DisplayImage = recipe.ResolveDisplayImage()
	return recipe, nil
}

// Update replaces the recipe's scalar fields and both child collections.
//
// Order of checks: identity, existence, ownership, then input. Nothing is
// written until all of them pass. The replace itself is one transaction:
// delete ingredients, delete steps, update the row, insert ingredients,
// insert steps. Any failure rolls every step back, so readers never see a
// recipe without its children.
func (s *RecipeService) Update(ctx context.Context, caller *model.Identity, id string, in RecipeInput) (*model.Recipe, error) {
	if caller == nil {
		return nil, apperror.Unauthenticated("login required")
	}

	existing, err := s.repo.GetRecipeByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/recipe: loading recipe %s: %w", id, err)
	}
	if !existing.IsOwnedBy(caller.UserID) {
		s.logger.Warn("recipe update denied",
			slog.String("recipeID", id),
			slog.String("callerID", caller.UserID),
		)
		return nil, apperror.Forbidden("only the author can edit this recipe")
	}

	if err := s.validateInput(&in); err != nil {
		return nil, err
	}

	updated := &model.Recipe{
		ID:        existing.ID,
		AuthorID:  existing.AuthorID,
		Published: existing.Published,
	}
	in.applyTo(updated)

	err = s.repo.RunInTx(ctx, func(tx repository.RecipeTx) error {
		if err := tx.DeleteIngredients(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteSteps(ctx, id); err != nil {
			return err
		}
		if err := tx.UpdateRecipe(ctx, updated); err != nil {
			return err
		}
		if err := tx.InsertIngredients(ctx, id, updated.Ingredients); err != nil {
			return err
		}
		return tx.InsertSteps(ctx, id, updated.Steps)
	})
	if err != nil {
		return nil, fmt.Errorf("service/recipe: replacing recipe %s: %w", id, err)
	}

	s.logger.Info("recipe updated",
		slog.String("recipeID", id),
		slog.Int("ingredients", len(updated.Ingredients)),
		slog.Int("steps", len(updated.Steps)),
	)

	return s.load(ctx, id)
}

// Delete removes a recipe for its author or for any admin. Children, likes
// and comments go with it; there is no undo.
func (s *RecipeService) Delete(ctx context.Context, caller *model.Identity, id string) error {
	if caller == nil {
		return apperror.Unauthenticated("login required")
	}

	existing, err := s.repo.GetRecipeByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service/recipe: loading recipe %s: %w", id, err)
	}
	if !caller.IsAdmin() && !existing.IsOwnedBy(caller.UserID) {
		s.logger.Warn("recipe delete denied",
			slog.String("recipeID", id),
			slog.String("callerID", caller.UserID),
		)
		return apperror.Forbidden("only the author or an admin can delete this recipe")
	}

	if err := s.repo.DeleteRecipe(ctx, id); err != nil {
		return fmt.Errorf("service/recipe: deleting recipe %s: %w", id, err)
	}

	s.logger.Info("recipe deleted",
		slog.String("recipeID", id),
		slog.String("by", caller.UserID),
		slog.Bool("asAdmin", !existing.IsOwnedBy(caller.UserID)),
	)
	return nil
}

// List returns one page of published recipes, newest first, optionally
// narrowed by a title/description search and an author.
func (s *RecipeService) List(ctx context.Context, q ListQuery) (*RecipePage, error) {
	filter := repository.RecipeFilter{}.Published()
	if search := strings.TrimSpace(q.Search); search != "" {
		filter = filter.ByText(search)
	}
	if author := strings.TrimSpace(q.AuthorID); author != "" {
		filter = filter.ByAuthor(author)
	}
	page := repository.Page{Page: q.Page, Limit: q.Limit}.Normalize()

	recipes, total, err := s.repo.ListRecipes(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("service/recipe: listing recipes: %w", err)
	}
	for i := range recipes {
		recipes[i].DisplayImage = recipes[i].ResolveDisplayImage()
	}

	return &RecipePage{
		Recipes: recipes,
		Pagination: Pagination{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      total,
			TotalPages: page.TotalPages(total),
		},
	}, nil
}

// load re-reads a recipe after a write, regardless of its published flag.
func (s *RecipeService) load(ctx context.Context, id string) (*model.Recipe, error) {
	recipe, err := s.repo.GetRecipeByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/recipe: reloading recipe %s: %w", id, err)
	}
	recipe.DisplayImage = recipe.ResolveDisplayImage()
	return recipe, nil
}
