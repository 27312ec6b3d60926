// Command seed fills a database with demo accounts and recipes.
//
// It is safe to run repeatedly: existing accounts are reused and an author
// who already has recipes gets no new ones. All demo accounts share the
// password "password123"; chef@cookshare.com is an ADMIN.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sakif/cookshare/internal/apperror"
	"github.com/sakif/cookshare/internal/auth"
	"github.com/sakif/cookshare/internal/model"
	"github.com/sakif/cookshare/internal/repository"
	sqliteRepo "github.com/sakif/cookshare/internal/repository/sqlite"
	"github.com/sakif/cookshare/internal/service"
)

const demoPassword = "password123"

type demoUser struct {
	email string
	name  string
	bio   string
	role  model.Role
}

var demoUsers = []demoUser{
	{"test@cookshare.com", "Kimchi King", "Twenty years of Korean home cooking, from traditional to fusion.", model.RoleUser},
	{"chef@cookshare.com", "Chef Pasta Park", "Italian cooking, classic and weeknight.", model.RoleAdmin},
	{"baker@cookshare.com", "Baking Master", "Home baking and desserts that anyone can make.", model.RoleUser},
}

func intp(n int) *int { return &n }

// demoRecipes is keyed by author email.
var demoRecipes = map[string][]service.RecipeInput{
	"test@cookshare.com": {{
		Title:       "Home-style Kimchi Jjigae",
		Description: "A spicy, deep broth where sour kimchi meets pork shoulder.",
		Image:       "https://images.unsplash.com/photo-1582878826629-29b7ad1cdc43?w=800&h=600&fit=crop",
		Servings:    intp(4),
		PrepTime:    intp(15),
		CookTime:    intp(30),
		Difficulty:  model.DifficultyEasy,
		Category:    model.CategoryMain,
		Ingredients: []service.IngredientInput{
			{Name: "Aged kimchi", Amount: "300", Unit: "g"},
			{Name: "Pork shoulder", Amount: "200", Unit: "g"},
			{Name: "Tofu", Amount: "1/2", Unit: "block"},
			{Name: "Green onion", Amount: "1", Unit: "stalk"},
			{Name: "Onion", Amount: "1/2", Unit: "whole"},
			{Name: "Garlic", Amount: "3", Unit: "cloves"},
			{Name: "Gochugaru", Amount: "1", Unit: "tbsp"},
			{Name: "Sesame oil", Amount: "1", Unit: "tbsp"},
		},
		Steps: []service.StepInput{
			{Instruction: "Cut the kimchi and pork into bite-sized pieces. Cube the tofu and slice the onions.", Image: "https://images.unsplash.com/photo-1567620905732-2d1ec7ab7445?w=600&h=400&fit=crop"},
			{Instruction: "Fry the pork in sesame oil until it changes color, then add the kimchi and stir-fry together.", Image: "https://images.unsplash.com/photo-1574484284002-952d92456975?w=600&h=400&fit=crop"},
			{Instruction: "Add 3 cups of water. When it boils, season with gochugaru."},
			{Instruction: "Add the tofu and onion and simmer for 10 more minutes.", Image: "https://images.unsplash.com/photo-1569718212165-3a8278d5f624?w=600&h=400&fit=crop"},
			{Instruction: "Finish with green onion and minced garlic and boil for 2 more minutes."},
		},
	}},
	"chef@cookshare.com": {{
		Title:       "Creamy Carbonara",
		Description: "Smoky bacon and parmesan in a silky cream sauce.",
		Image:       "https://images.unsplash.com/photo-1621996346565-e3dbc353d2e5?w=800&h=600&fit=crop",
		Servings:    intp(2),
		PrepTime:    intp(10),
		CookTime:    intp(20),
		Difficulty:  model.DifficultyMedium,
		Category:    model.CategoryMain,
		Ingredients: []service.IngredientInput{
			{Name: "Spaghetti", Amount: "200", Unit: "g"},
			{Name: "Bacon", Amount: "150", Unit: "g"},
			{Name: "Eggs", Amount: "2"},
			{Name: "Parmesan", Amount: "50", Unit: "g"},
			{Name: "Heavy cream", Amount: "100", Unit: "ml"},
			{Name: "Black pepper", Amount: "to taste"},
		},
		Steps: []service.StepInput{
			{Instruction: "Boil the spaghetti in salted water until al dente."},
			{Instruction: "Crisp the bacon in a dry pan."},
			{Instruction: "Whisk eggs, cream and parmesan together."},
			{Instruction: "Toss the drained pasta with the bacon off the heat, then stir in the egg mixture.", Image: "https://images.unsplash.com/photo-1612874742237-6526221588e3?w=600&h=400&fit=crop"},
		},
	}},
	"baker@cookshare.com": {{
		Title:       "Fudgy Brownies",
		Description: "Dense, chewy brownies with a crackly top.",
		Servings:    intp(9),
		PrepTime:    intp(15),
		CookTime:    intp(25),
		Difficulty:  model.DifficultyEasy,
		Category:    model.CategoryDessert,
		Ingredients: []service.IngredientInput{
			{Name: "Dark chocolate", Amount: "200", Unit: "g"},
			{Name: "Butter", Amount: "120", Unit: "g"},
			{Name: "Sugar", Amount: "150", Unit: "g"},
			{Name: "Eggs", Amount: "2"},
			{Name: "Flour", Amount: "60", Unit: "g"},
		},
		Steps: []service.StepInput{
			{Instruction: "Melt the chocolate and butter together."},
			{Instruction: "Whisk in sugar, then eggs one at a time."},
			{Instruction: "Fold in the flour and bake at 175C for 25 minutes.", Image: "https://images.unsplash.com/photo-1606313564200-e75d5e30476c?w=600&h=400&fit=crop"},
		},
	}},
}

func main() {
	_ = godotenv.Load()

	defaultPath := os.Getenv("DB_PATH")
	if defaultPath == "" {
		defaultPath = "data/cookshare.db"
	}
	dbPath := flag.String("db", defaultPath, "SQLite database file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(context.Background(), *dbPath, logger); err != nil {
		logger.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("seed complete", slog.String("database", *dbPath))
}

func run(ctx context.Context, dbPath string, logger *slog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sqliteRepo.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	passwords := auth.NewPasswordService()
	hash, err := passwords.Hash(demoPassword)
	if err != nil {
		return err
	}

	recipes := service.NewRecipeService(db, logger)
	users := make(map[string]*model.User, len(demoUsers))

	for _, du := range demoUsers {
		u, err := ensureUser(ctx, db, du, hash)
		if err != nil {
			return err
		}
		users[du.email] = u
	}

	var created []*model.Recipe
	for _, du := range demoUsers {
		u := users[du.email]
		_, total, err := db.ListRecipes(ctx, repository.RecipeFilter{}.ByAuthor(u.ID), repository.Page{Page: 1, Limit: 1})
		if err != nil {
			return err
		}
		if total > 0 {
			logger.Info("author already has recipes, skipping", slog.String("email", du.email))
			continue
		}

		caller := &model.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
		for _, in := range demoRecipes[du.email] {
			r, err := recipes.Create(ctx, caller, in)
			if err != nil {
				return fmt.Errorf("creating %q: %w", in.Title, err)
			}
			created = append(created, r)
		}
	}

	// Some engagement so counts are not all zero.
	for _, r := range created {
		for email, u := range users {
			if u.ID == r.AuthorID {
				continue
			}
			if err := db.AddLike(ctx, u.ID, r.ID); err != nil {
				return err
			}
			if _, err := db.AddComment(ctx, r.ID, u.ID, "Made this last night, loved it! - "+email); err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureUser(ctx context.Context, db *sqliteRepo.DB, du demoUser, hash string) (*model.User, error) {
	u, err := db.GetUserByEmail(ctx, du.email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	u = &model.User{
		Email:        du.email,
		Name:         du.name,
		Bio:          du.bio,
		Role:         du.role,
		PasswordHash: hash,
	}
	if err := db.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("creating %s: %w", du.email, err)
	}
	return u, nil
}
