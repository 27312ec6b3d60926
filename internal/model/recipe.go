package model

import "time"

// Difficulty is how demanding a recipe is to cook.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Category is the meal slot a recipe belongs to.
type Category string

const (
	CategoryBreakfast Category = "Breakfast"
	CategoryLunch     Category = "Lunch"
	CategoryDinner    Category = "Dinner"
	CategorySnack     Category = "Snack"
	CategoryDessert   Category = "Dessert"
	CategoryMain      Category = "Main"
	CategorySide      Category = "Side"
)

// Defaults applied when a write omits the field.
const (
	DefaultServings   = 4
	DefaultDifficulty = DifficultyMedium
	DefaultCategory   = CategoryMain
)

// Recipe is the root of the recipe aggregate. Ingredients and Steps are owned
// exclusively by it and are always written as complete collections.
//
// Author, Counts and DisplayImage are read-side projections: the repository
// fills Author and Counts, the service derives DisplayImage. None of them
// are persisted from this struct.
//
// A loaded aggregate always carries non-nil Ingredients and Steps, so an
// emptied collection serializes as []. Listings do not load children and
// leave both nil.
type Recipe struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Image       string     `json:"image,omitempty"`
	Servings    int        `json:"servings"`
	PrepTime    *int       `json:"prepTime,omitempty"` // minutes
	CookTime    *int       `json:"cookTime,omitempty"` // minutes
	Difficulty  Difficulty `json:"difficulty"`
	Category    Category   `json:"category"`
	Published   bool       `json:"published"`
	AuthorID    string     `json:"authorId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Author      *AuthorSummary `json:"author,omitempty"`
	Ingredients []Ingredient   `json:"ingredients"`
	Steps       []Step         `json:"steps"`
	Counts      Counts         `json:"counts"`

	// LastStepImage is the image of the highest-ordered step that has one.
	// List queries fill it instead of loading every step.
	LastStepImage string  `json:"-"`
	DisplayImage  *string `json:"displayImage"`
}

// Ingredient is one line of a recipe's ingredient list. Amount is free text
// so quantities like "1/2" or "a pinch" survive unchanged.
type Ingredient struct {
	ID       string `json:"id"`
	RecipeID string `json:"recipeId"`
	Name     string `json:"name"`
	Amount   string `json:"amount"`
	Unit     string `json:"unit,omitempty"`
	Order    int    `json:"order"`
}

// Step is one instruction of a recipe's method.
type Step struct {
	ID          string `json:"id"`
	RecipeID    string `json:"recipeId"`
	Instruction string `json:"instruction"`
	Image       string `json:"image,omitempty"`
	Order       int    `json:"order"`
}

// AuthorSummary is the public slice of a User embedded in recipe responses.
type AuthorSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Counts are the aggregate like/comment tallies of a recipe.
type Counts struct {
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
}

// ResolveDisplayImage picks the image shown for a recipe: its own image,
// otherwise the image of the highest-ordered step that has one, otherwise nil.
func (r *Recipe) ResolveDisplayImage() *string {
	if r.Image != "" {
		img := r.Image
		return &img
	}

	best := -1
	img := ""
	for _, s := range r.Steps {
		if s.Image != "" && s.Order > best {
			best = s.Order
			img = s.Image
		}
	}
	if img == "" {
		img = r.LastStepImage
	}
	if img == "" {
		return nil
	}
	return &img
}

// IsOwnedBy reports whether the given user authored the recipe.
func (r *Recipe) IsOwnedBy(userID string) bool {
	return userID != "" && r.AuthorID == userID
}
