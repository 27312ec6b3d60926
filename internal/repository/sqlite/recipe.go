package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/cookshare/internal/apperror"
	"github.com/sakif/cookshare/internal/model"
	"github.com/sakif/cookshare/internal/repository"
)

var _ repository.RecipeRepository = (*DB)(nil)

// recipeSelect loads a recipe row together with everything list and detail
// views show next to it. Counts and the last step image are correlated
// subqueries so a listing needs exactly one query.
const recipeSelect = `
	SELECT r.id, r.title, r.description, r.image, r.servings, r.prep_time, r.cook_time,
	       r.difficulty, r.category, r.published, r.author_id, r.created_at, r.updated_at,
	       u.id, u.name, u.email,
	       (SELECT COUNT(*) FROM likes l WHERE l.recipe_id = r.id),
	       (SELECT COUNT(*) FROM comments c WHERE c.recipe_id = r.id),
	       COALESCE((SELECT s.image FROM steps s
	                 WHERE s.recipe_id = r.id AND s.image <> ''
	                 ORDER BY s."order" DESC LIMIT 1), '')
	FROM recipes r
	JOIN users u ON u.id = r.author_id`

func scanRecipe(row scanner) (*model.Recipe, error) {
	var (
		r          model.Recipe
		a          model.AuthorSummary
		prep, cook sql.NullInt64
	)
	err := row.Scan(
		&r.ID, &r.Title, &r.Description, &r.Image, &r.Servings, &prep, &cook,
		&r.Difficulty, &r.Category, &r.Published, &r.AuthorID, &r.CreatedAt, &r.UpdatedAt,
		&a.ID, &a.Name, &a.Email,
		&r.Counts.Likes, &r.Counts.Comments,
		&r.LastStepImage,
	)
	if err != nil {
		return nil, err
	}
	r.PrepTime = intPtr(prep)
	r.CookTime = intPtr(cook)
	r.Author = &a
	return &r, nil
}

// CreateRecipe inserts the recipe row and both child collections in one
// transaction. Child order values are taken as given; the service assigns
// them from input position.
func (db *DB) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	recipe.ID = xid.New().String()
	now := db.now()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now

	return db.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recipes (id, title, description, image, servings, prep_time, cook_time,
			                      difficulty, category, published, author_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			recipe.ID, recipe.Title, recipe.Description, recipe.Image, recipe.Servings,
			nullableInt(recipe.PrepTime), nullableInt(recipe.CookTime),
			recipe.Difficulty, recipe.Category, recipe.Published, recipe.AuthorID,
			recipe.CreatedAt, recipe.UpdatedAt,
		)
		if err != nil {
			return mapWriteError("recipe", recipe.ID, fmt.Errorf("sqlite: creating recipe: %w", err))
		}

		rtx := &recipeTx{tx: tx, now: db.now}
		if err := rtx.InsertIngredients(ctx, recipe.ID, recipe.Ingredients); err != nil {
			return err
		}
		return rtx.InsertSteps(ctx, recipe.ID, recipe.Steps)
	})
}

// GetRecipeByID loads the full aggregate with children in ascending order.
// The published flag is returned as stored; visibility is the caller's call.
func (db *DB) GetRecipeByID(ctx context.Context, id string) (*model.Recipe, error) {
	r, err := scanRecipe(db.conn.QueryRowContext(ctx, recipeSelect+` WHERE r.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("recipe", id)
		}
		return nil, fmt.Errorf("sqlite: getting recipe %s: %w", id, err)
	}

	if r.Ingredients, err = db.listIngredients(ctx, id); err != nil {
		return nil, err
	}
	if r.Steps, err = db.listSteps(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (db *DB) listIngredients(ctx context.Context, recipeID string) ([]model.Ingredient, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, recipe_id, name, amount, unit, "order"
		 FROM ingredients WHERE recipe_id = ? ORDER BY "order" ASC`,
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ingredients of %s: %w", recipeID, err)
	}
	defer rows.Close()

	out := []model.Ingredient{}
	for rows.Next() {
		var in model.Ingredient
		if err := rows.Scan(&in.ID, &in.RecipeID, &in.Name, &in.Amount, &in.Unit, &in.Order); err != nil {
			return nil, fmt.Errorf("sqlite: scanning ingredient row: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ingredients: %w", err)
	}
	return out, nil
}

func (db *DB) listSteps(ctx context.Context, recipeID string) ([]model.Step, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, recipe_id, instruction, image, "order"
		 FROM steps WHERE recipe_id = ? ORDER BY "order" ASC`,
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing steps of %s: %w", recipeID, err)
	}
	defer rows.Close()

	out := []model.Step{}
	for rows.Next() {
		var s model.Step
		if err := rows.Scan(&s.ID, &s.RecipeID, &s.Instruction, &s.Image, &s.Order); err != nil {
			return nil, fmt.Errorf("sqlite: scanning step row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating steps: %w", err)
	}
	return out, nil
}

// escapeLike escapes LIKE metacharacters so user search text matches
// literally. Used together with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// whereClause renders the filter as SQL. Only fixed fragments are
// concatenated; every user value is a bound parameter.
func whereClause(f repository.RecipeFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Text != "" {
		pattern := "%" + escapeLike(f.Text) + "%"
		conds = append(conds, `(r.title LIKE ? ESCAPE '\' OR r.description LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if f.AuthorID != "" {
		conds = append(conds, `r.author_id = ?`)
		args = append(args, f.AuthorID)
	}
	if f.PublishedOnly {
		conds = append(conds, `r.published = 1`)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListRecipes returns one page of recipes, newest first. Recipes created in
// the same instant keep insertion order (later rowid first).
//
// Children are not loaded; LastStepImage carries the one step field a
// summary needs.
func (db *DB) ListRecipes(ctx context.Context, filter repository.RecipeFilter, page repository.Page) ([]model.Recipe, int, error) {
	page = page.Normalize()
	where, args := whereClause(filter)

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipes r`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting recipes: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		recipeSelect+where+` ORDER BY r.created_at DESC, r.rowid DESC LIMIT ? OFFSET ?`,
		append(args, page.Limit, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing recipes: %w", err)
	}
	defer rows.Close()

	recipes := make([]model.Recipe, 0, page.Limit)
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning recipe row: %w", err)
		}
		recipes = append(recipes, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating recipes: %w", err)
	}

	return recipes, total, nil
}

// DeleteRecipe removes a recipe and everything referencing it. Children are
// deleted explicitly in the same transaction, so the result does not depend
// on foreign_keys being enabled for the connection.
func (db *DB) DeleteRecipe(ctx context.Context, id string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"likes", "comments", "ingredients", "steps"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE recipe_id = ?`, id); err != nil {
				return fmt.Errorf("sqlite: deleting %s of recipe %s: %w", table, id, err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting recipe %s: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("recipe", id)
		}
		return nil
	})
}

// RunInTx hands fn the transactional write primitives. fn must not call
// other DB methods; the single pooled connection belongs to the tx.
func (db *DB) RunInTx(ctx context.Context, fn func(tx repository.RecipeTx) error) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&recipeTx{tx: tx, now: db.now})
	})
}
