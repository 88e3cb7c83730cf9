package shopping

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"weekly-planner/internal/database"
	"weekly-planner/internal/shared"
	"weekly-planner/internal/telemetry"
)

// Service runs the shopping list transactions. Each mutation is a single
// transaction: on any error nothing is committed.
type Service struct {
	db   *database.DB
	repo *Repository
	op   *telemetry.Operation
}

// NewService creates a Service. op may be nil.
func NewService(db *database.DB, op *telemetry.Operation) *Service {
	if op == nil {
		op = telemetry.NewOperation(nil)
	}
	return &Service{db: db, repo: NewRepository(db), op: op}
}

// Repository exposes the underlying repository, e.g. for seeding ingredients.
func (s *Service) Repository() *Repository {
	return s.repo
}

// Move places an item at the requested position of the requested bucket and
// renumbers both buckets so their sorts stay contiguous. A target beyond the end
// of the bucket places the item last.
func (s *Service) Move(ctx context.Context, req MoveRequest) (_ *MoveResult, err error) {
	ctx, end := s.op.Start(ctx, "shopping.move", scopeAttrs(req.scope())...)
	defer func() { end(err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	scope := req.scope()

	var result *MoveResult
	err = s.db.WithTx(ctx, func(q *database.Querier) error {
		repo := s.repo.WithTx(q)
		if err := repo.LockScope(ctx, scope); err != nil {
			return err
		}

		n, err := repo.UpdatePlacement(ctx, scope, req.ID, req.Bucket, req.Sort)
		if err != nil {
			return err
		}
		if n == 0 {
			return itemNotFound()
		}

		others, err := repo.ListBucket(ctx, scope, req.Bucket, req.ID)
		if err != nil {
			return err
		}
		target := min(req.Sort, len(others))
		for i, it := range others {
			want := i
			if i >= target {
				want = i + 1
			}
			if it.Sort != want {
				if err := repo.SetSort(ctx, scope, it.ID, want); err != nil {
					return err
				}
			}
		}
		if target != req.Sort {
			if err := repo.SetSort(ctx, scope, req.ID, target); err != nil {
				return err
			}
		}

		if err := compact(ctx, repo, scope, req.Bucket.Other()); err != nil {
			return err
		}

		list, err := repo.List(ctx, scope)
		if err != nil {
			return err
		}
		result = &MoveResult{Fresh: list.Fresh, Pantry: list.Pantry}
		return nil
	})
	if err != nil {
		return nil, s.classify(ctx, "move", err)
	}

	slog.DebugContext(ctx, "moved shopping item", "item_id", req.ID, "bucket", req.Bucket, "sort", req.Sort)
	return result, nil
}

// Append adds an item at the end of a bucket and returns its id. A known public
// ingredient supplies cost, stockcode and the default bucket; an unknown one
// leaves the item as free text.
func (s *Service) Append(ctx context.Context, req AppendRequest) (_ int64, err error) {
	ctx, end := s.op.Start(ctx, "shopping.append", scopeAttrs(req.scope())...)
	defer func() { end(err) }()

	req, err = req.Validate()
	if err != nil {
		return 0, err
	}
	scope := req.scope()

	var id int64
	err = s.db.WithTx(ctx, func(q *database.Querier) error {
		repo := s.repo.WithTx(q)
		if err := repo.LockScope(ctx, scope); err != nil {
			return err
		}

		item := Item{
			HouseholdID: scope.HouseholdID,
			Week:        scope.Week,
			Year:        scope.Year,
			Name:        req.Name,
			Bucket:      BucketFresh,
		}

		if req.KnownIngredientID != nil {
			ing, err := repo.FindPublicIngredient(ctx, *req.KnownIngredientID)
			if err != nil {
				return err
			}
			if ing != nil {
				item.Cost = ing.Cost
				item.Stockcode = ing.Stockcode
				item.IngredientID = &ing.ID
				if ing.Pantry {
					item.Bucket = BucketPantry
				}
			}
		}
		if req.Bucket != nil {
			item.Bucket = *req.Bucket
		}

		sort, err := repo.NextSort(ctx, scope, item.Bucket)
		if err != nil {
			return err
		}
		item.Sort = sort

		id, err = repo.Insert(ctx, item)
		return err
	})
	if err != nil {
		return 0, s.classify(ctx, "append", err)
	}

	slog.DebugContext(ctx, "appended shopping item", "item_id", id, "scope", scope.String())
	return id, nil
}

// Delete removes an item and renumbers the rest of its bucket.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (err error) {
	ctx, end := s.op.Start(ctx, "shopping.delete", scopeAttrs(req.scope())...)
	defer func() { end(err) }()

	if err := req.Validate(); err != nil {
		return err
	}
	scope := req.scope()

	err = s.db.WithTx(ctx, func(q *database.Querier) error {
		repo := s.repo.WithTx(q)
		if err := repo.LockScope(ctx, scope); err != nil {
			return err
		}

		bucket, ok, err := repo.BucketOf(ctx, scope, req.ID)
		if err != nil {
			return err
		}
		if !ok {
			return itemNotFound()
		}
		if _, err := repo.Delete(ctx, scope, req.ID); err != nil {
			return err
		}
		return compact(ctx, repo, scope, bucket)
	})
	if err != nil {
		return s.classify(ctx, "delete", err)
	}
	return nil
}

// SetPurchased updates the purchased flag of an item.
func (s *Service) SetPurchased(ctx context.Context, req PurchaseRequest) (err error) {
	ctx, end := s.op.Start(ctx, "shopping.set_purchased", scopeAttrs(req.scope())...)
	defer func() { end(err) }()

	if err := req.Validate(); err != nil {
		return err
	}
	scope := req.scope()

	err = s.db.WithTx(ctx, func(q *database.Querier) error {
		n, err := s.repo.WithTx(q).SetPurchased(ctx, scope, req.ID, req.Purchased)
		if err != nil {
			return err
		}
		if n == 0 {
			return itemNotFound()
		}
		return nil
	})
	if err != nil {
		return s.classify(ctx, "set_purchased", err)
	}
	return nil
}

// List returns the week's list with both buckets ordered by sort.
func (s *Service) List(ctx context.Context, scope Scope) (_ *List, err error) {
	ctx, end := s.op.Start(ctx, "shopping.list", scopeAttrs(scope)...)
	defer func() { end(err) }()

	if err := validateScope(scope); err != nil {
		return nil, err
	}

	var list *List
	err = s.db.WithConn(ctx, func(q *database.Querier) error {
		var err error
		list, err = s.repo.WithTx(q).List(ctx, scope)
		return err
	})
	if err != nil {
		return nil, s.classify(ctx, "list", err)
	}
	return list, nil
}

// compact renumbers a bucket to 0..n-1, keeping its current order.
func compact(ctx context.Context, repo *Repository, scope Scope, bucket Bucket) error {
	items, err := repo.ListBucket(ctx, scope, bucket, 0)
	if err != nil {
		return err
	}
	for i, it := range items {
		if it.Sort != i {
			if err := repo.SetSort(ctx, scope, it.ID, i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) classify(ctx context.Context, op string, err error) error {
	err = database.Classify(err)
	switch shared.KindOf(err) {
	case shared.KindStore:
		slog.ErrorContext(ctx, "shopping transaction failed", "operation", op, "error", err)
	case shared.KindUnavailable:
		slog.WarnContext(ctx, "shopping store unavailable", "operation", op, "error", err)
	}
	return err
}

func itemNotFound() error {
	return shared.NotFound("item_not_found", "item not found")
}

func scopeAttrs(s Scope) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("household.id", s.HouseholdID),
		attribute.Int("week", s.Week),
		attribute.Int("year", s.Year),
	}
}
