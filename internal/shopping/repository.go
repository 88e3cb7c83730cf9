package shopping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"weekly-planner/internal/database"
)

const itemColumns = `id, household_id, week, year, bucket, sort, name, cost, stockcode, purchased, ingredient_id`

// Repository handles persistence of shopping list items.
type Repository struct {
	q *database.Querier
}

// NewRepository creates a new shopping list repository running on the pool.
func NewRepository(db *database.DB) *Repository {
	return &Repository{q: db.Querier()}
}

// WithTx returns a Repository that runs its statements on q.
func (r *Repository) WithTx(q *database.Querier) *Repository {
	return &Repository{q: q}
}

// LockScope serializes writers of one household week for the rest of the
// transaction. SQLite transactions already hold the database write lock.
func (r *Repository) LockScope(ctx context.Context, s Scope) error {
	switch r.q.Dialect() {
	case database.Postgres:
		key := fmt.Sprintf("shopping:%d:%d:%d", s.HouseholdID, s.Year, s.Week)
		if _, err := r.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext(?))`, key); err != nil {
			return fmt.Errorf("failed to lock %s: %w", s, err)
		}
	case database.MySQL:
		rows, err := r.q.QueryContext(ctx,
			`SELECT id FROM shopping_list_items WHERE household_id = ? AND year = ? AND week = ? FOR UPDATE`,
			s.HouseholdID, s.Year, s.Week,
		)
		if err != nil {
			return fmt.Errorf("failed to lock %s: %w", s, err)
		}
		// Drain so every row lock is taken; they are held until commit.
		for rows.Next() {
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("failed to lock %s: %w", s, err)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to lock %s: %w", s, err)
		}
	}
	return nil
}

// UpdatePlacement moves an item within the scope and reports how many rows matched.
func (r *Repository) UpdatePlacement(ctx context.Context, s Scope, id int64, bucket Bucket, sort int) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE shopping_list_items SET bucket = ?, sort = ?
		 WHERE id = ? AND household_id = ? AND week = ? AND year = ?`,
		string(bucket), sort, id, s.HouseholdID, s.Week, s.Year,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update item %d placement: %w", id, err)
	}
	return rowsAffected(res)
}

// SetSort rewrites the sort position of a single item.
func (r *Repository) SetSort(ctx context.Context, s Scope, id int64, sort int) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE shopping_list_items SET sort = ? WHERE id = ? AND household_id = ?`,
		sort, id, s.HouseholdID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item %d sort: %w", id, err)
	}
	return nil
}

// BucketOf returns the bucket an item of the scope lives in. ok is false when the
// item does not exist within the scope.
func (r *Repository) BucketOf(ctx context.Context, s Scope, id int64) (b Bucket, ok bool, err error) {
	var raw string
	err = r.q.QueryRowContext(ctx,
		`SELECT bucket FROM shopping_list_items WHERE id = ? AND household_id = ? AND week = ? AND year = ?`,
		id, s.HouseholdID, s.Week, s.Year,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return Bucket(raw), true, nil
}

// ListBucket returns the items of one bucket ordered by sort then id, leaving out
// excludeID.
func (r *Repository) ListBucket(ctx context.Context, s Scope, bucket Bucket, excludeID int64) ([]Item, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM shopping_list_items
		 WHERE household_id = ? AND week = ? AND year = ? AND bucket = ? AND id <> ?
		 ORDER BY sort, id`,
		s.HouseholdID, s.Week, s.Year, string(bucket), excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s items: %w", bucket, err)
	}
	return collectItems(rows)
}

// List returns both buckets of the scope.
func (r *Repository) List(ctx context.Context, s Scope) (*List, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM shopping_list_items
		 WHERE household_id = ? AND week = ? AND year = ?
		 ORDER BY bucket, sort, id`,
		s.HouseholdID, s.Week, s.Year,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}

	list := &List{Fresh: []Item{}, Pantry: []Item{}}
	for _, it := range items {
		if it.Bucket == BucketFresh {
			list.Fresh = append(list.Fresh, it)
		} else {
			list.Pantry = append(list.Pantry, it)
		}
	}
	return list, nil
}

// NextSort returns the sort position after the last item of the bucket, or 0
// for an empty bucket.
func (r *Repository) NextSort(ctx context.Context, s Scope, bucket Bucket) (int, error) {
	var next int
	err := r.q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort), -1) + 1 FROM shopping_list_items
		 WHERE household_id = ? AND week = ? AND year = ? AND bucket = ?`,
		s.HouseholdID, s.Week, s.Year, string(bucket),
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next sort: %w", err)
	}
	return next, nil
}

// Insert stores a new item and returns its id.
func (r *Repository) Insert(ctx context.Context, it Item) (int64, error) {
	query := `INSERT INTO shopping_list_items
		(household_id, week, year, bucket, sort, name, cost, stockcode, purchased, ingredient_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{
		it.HouseholdID, it.Week, it.Year, string(it.Bucket), it.Sort, it.Name,
		nullFloat(it.Cost), nullString(it.Stockcode), it.Purchased, nullInt(it.IngredientID),
	}

	if r.q.Dialect().SupportsReturning() {
		var id int64
		if err := r.q.QueryRowContext(ctx, query+` RETURNING id`, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to insert item: %w", err)
		}
		return id, nil
	}

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted item id: %w", err)
	}
	return id, nil
}

// Delete removes an item of the scope and reports how many rows were removed.
func (r *Repository) Delete(ctx context.Context, s Scope, id int64) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM shopping_list_items WHERE id = ? AND household_id = ? AND week = ? AND year = ?`,
		id, s.HouseholdID, s.Week, s.Year,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete item %d: %w", id, err)
	}
	return rowsAffected(res)
}

// SetPurchased updates the purchased flag of an item of the scope and reports
// how many rows matched.
func (r *Repository) SetPurchased(ctx context.Context, s Scope, id int64, purchased bool) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE shopping_list_items SET purchased = ? WHERE id = ? AND household_id = ? AND week = ? AND year = ?`,
		purchased, id, s.HouseholdID, s.Week, s.Year,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update item %d: %w", id, err)
	}
	return rowsAffected(res)
}

// FindPublicIngredient looks up a known ingredient. Private ingredients are
// treated as missing. It returns nil, nil when no public ingredient has the id.
func (r *Repository) FindPublicIngredient(ctx context.Context, id int64) (*Ingredient, error) {
	var (
		ing       Ingredient
		cost      sql.NullFloat64
		stockcode sql.NullString
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, cost, stockcode, pantry, is_public FROM ingredients WHERE id = ? AND is_public = ?`,
		id, true,
	).Scan(&ing.ID, &ing.Name, &cost, &stockcode, &ing.Pantry, &ing.Public)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ingredient %d: %w", id, err)
	}
	ing.Cost = floatPtr(cost)
	ing.Stockcode = stringPtr(stockcode)
	return &ing, nil
}

// SaveIngredient stores a known ingredient and returns its id.
func (r *Repository) SaveIngredient(ctx context.Context, ing Ingredient) (int64, error) {
	query := `INSERT INTO ingredients (name, cost, stockcode, pantry, is_public) VALUES (?, ?, ?, ?, ?)`
	args := []any{ing.Name, nullFloat(ing.Cost), nullString(ing.Stockcode), ing.Pantry, ing.Public}

	if r.q.Dialect().SupportsReturning() {
		var id int64
		if err := r.q.QueryRowContext(ctx, query+` RETURNING id`, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to insert ingredient: %w", err)
		}
		return id, nil
	}

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ingredient: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted ingredient id: %w", err)
	}
	return id, nil
}

func collectItems(rows *sql.Rows) ([]Item, error) {
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var (
			it           Item
			bucket       string
			cost         sql.NullFloat64
			stockcode    sql.NullString
			ingredientID sql.NullInt64
		)
		if err := rows.Scan(&it.ID, &it.HouseholdID, &it.Week, &it.Year, &bucket, &it.Sort, &it.Name,
			&cost, &stockcode, &it.Purchased, &ingredientID); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.Bucket = Bucket(bucket)
		it.Cost = floatPtr(cost)
		it.Stockcode = stringPtr(stockcode)
		if ingredientID.Valid {
			v := ingredientID.Int64
			it.IngredientID = &v
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
