// Package repository declares the storage contracts the service layer depends
// on. Implementations live in sub-packages (see repository/sqlite).
package repository

import (
	"context"
	"math"

	"github.com/sakif/cookshare/internal/model"
)

// Pagination bounds for recipe listing.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (Page-1)*Limit from overflowing.
	MaxPage = math.MaxInt / MaxLimit
)

// Page selects one page of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Normalize replaces out-of-range values with defaults instead of failing.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages is ceil(total / limit).
func (p Page) TotalPages(total int) int {
	if p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// RecipeFilter is the explicit set of predicates a recipe listing may apply.
// Zero values mean "no restriction" except PublishedOnly, which callers set
// deliberately.
type RecipeFilter struct {
	Text          string // substring of title OR description
	AuthorID      string
	PublishedOnly bool
}

// ByText restricts the filter to recipes whose title or description contains q.
func (f RecipeFilter) ByText(q string) RecipeFilter {
	f.Text = q
	return f
}

// ByAuthor restricts the filter to one author.
func (f RecipeFilter) ByAuthor(authorID string) RecipeFilter {
	f.AuthorID = authorID
	return f
}

// Published restricts the filter to published recipes.
func (f RecipeFilter) Published() RecipeFilter {
	f.PublishedOnly = true
	return f
}

// RecipeTx is the set of write primitives available inside one transaction.
// Every call either commits with the rest of the transaction or not at all.
type RecipeTx interface {
	DeleteIngredients(ctx context.Context, recipeID string) error
	DeleteSteps(ctx context.Context, recipeID string) error
	UpdateRecipe(ctx context.Context, recipe *model.Recipe) error
	InsertIngredients(ctx context.Context, recipeID string, ingredients []model.Ingredient) error
	InsertSteps(ctx context.Context, recipeID string, steps []model.Step) error
}

// RecipeRepository owns persistence of the recipe aggregate.
type RecipeRepository interface {
	// CreateRecipe stores the recipe and its children atomically, filling in
	// generated ids and timestamps.
	CreateRecipe(ctx context.Context, recipe *model.Recipe) error
	// GetRecipeByID loads the full aggregate (author, ordered children,
	// counts) regardless of its published flag.
	GetRecipeByID(ctx context.Context, id string) (*model.Recipe, error)
	// ListRecipes returns one page of matching recipes and the total count
	// of matches.
	ListRecipes(ctx context.Context, filter RecipeFilter, page Page) ([]model.Recipe, int, error)
	// DeleteRecipe removes the recipe and everything that references it.
	DeleteRecipe(ctx context.Context, id string) error
	// RunInTx runs fn inside a single transaction. A non-nil return from fn
	// rolls everything back.
	RunInTx(ctx context.Context, fn func(tx RecipeTx) error) error
}

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	// UpsertGitHubUser creates or refreshes the account linked to a GitHub id.
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}
