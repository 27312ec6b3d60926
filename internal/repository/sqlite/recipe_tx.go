package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/cookshare/internal/apperror"
	"github.com/sakif/cookshare/internal/model"
	"github.com/sakif/cookshare/internal/repository"
)

var _ repository.RecipeTx = (*recipeTx)(nil)

// recipeTx implements repository.RecipeTx on an open *sql.Tx.
type recipeTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *recipeTx) DeleteIngredients(ctx context.Context, recipeID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM ingredients WHERE recipe_id = ?`, recipeID); err != nil {
		return fmt.Errorf("sqlite: deleting ingredients of %s: %w", recipeID, err)
	}
	return nil
}

func (t *recipeTx) DeleteSteps(ctx context.Context, recipeID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM steps WHERE recipe_id = ?`, recipeID); err != nil {
		return fmt.Errorf("sqlite: deleting steps of %s: %w", recipeID, err)
	}
	return nil
}

// UpdateRecipe rewrites the scalar fields. author_id, published and
// created_at are never touched here.
func (t *recipeTx) UpdateRecipe(ctx context.Context, recipe *model.Recipe) error {
	recipe.UpdatedAt = t.now()

	result, err := t.tx.ExecContext(ctx,
		`UPDATE recipes
		 SET title = ?, description = ?, image = ?, servings = ?, prep_time = ?, cook_time = ?,
		     difficulty = ?, category = ?, updated_at = ?
		 WHERE id = ?`,
		recipe.Title, recipe.Description, recipe.Image, recipe.Servings,
		nullableInt(recipe.PrepTime), nullableInt(recipe.CookTime),
		recipe.Difficulty, recipe.Category, recipe.UpdatedAt,
		recipe.ID,
	)
	if err != nil {
		return mapWriteError("recipe", recipe.ID, fmt.Errorf("sqlite: updating recipe %s: %w", recipe.ID, err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("recipe", recipe.ID)
	}
	return nil
}

// InsertIngredients stores the given rows under recipeID, assigning ids.
// A duplicate order value fails the whole transaction with ErrConflict.
func (t *recipeTx) InsertIngredients(ctx context.Context, recipeID string, ingredients []model.Ingredient) error {
	if len(ingredients) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx,
		`INSERT INTO ingredients (id, recipe_id, name, amount, unit, "order") VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing ingredient insert: %w", err)
	}
	defer stmt.Close()

	for i := range ingredients {
		in := &ingredients[i]
		in.ID = xid.New().String()
		in.RecipeID = recipeID
		if _, err := stmt.ExecContext(ctx, in.ID, recipeID, in.Name, in.Amount, in.Unit, in.Order); err != nil {
			return mapWriteError("recipe", recipeID, fmt.Errorf("sqlite: inserting ingredient %d: %w", i, err))
		}
	}
	return nil
}

// InsertSteps stores the given rows under recipeID, assigning ids.
func (t *recipeTx) InsertSteps(ctx context.Context, recipeID string, steps []model.Step) error {
	if len(steps) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx,
		`INSERT INTO steps (id, recipe_id, instruction, image, "order") VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing step insert: %w", err)
	}
	defer stmt.Close()

	for i := range steps {
		s := &steps[i]
		s.ID = xid.New().String()
		s.RecipeID = recipeID
		if _, err := stmt.ExecContext(ctx, s.ID, recipeID, s.Instruction, s.Image, s.Order); err != nil {
			return mapWriteError("recipe", recipeID, fmt.Errorf("sqlite: inserting step %d: %w", i, err))
		}
	}
	return nil
}
