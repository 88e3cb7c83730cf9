package shopping

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"weekly-planner/internal/database/dbtest"
	"weekly-planner/internal/shared"
)

var week = Scope{HouseholdID: 1, Week: 12, Year: 2025}

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(dbtest.New(t), nil)
}

func appendItem(t *testing.T, svc *Service, s Scope, name string, bucket Bucket) int64 {
	t.Helper()
	id, err := svc.Append(context.Background(), AppendRequest{
		HouseholdID: s.HouseholdID,
		Week:        s.Week,
		Year:        s.Year,
		Name:        name,
		Bucket:      &bucket,
	})
	require.NoError(t, err)
	return id
}

func names(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func requireContiguous(t *testing.T, list *List) {
	t.Helper()
	for _, b := range []Bucket{BucketFresh, BucketPantry} {
		for i, it := range list.Bucket(b) {
			require.Equal(t, i, it.Sort, "%s bucket item %q", b, it.Name)
			require.Equal(t, b, it.Bucket)
		}
	}
}

func listWeek(t *testing.T, svc *Service, s Scope) *List {
	t.Helper()
	list, err := svc.List(context.Background(), s)
	require.NoError(t, err)
	return list
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	cost := 2.5
	code := "SC-100"
	pantryID, err := svc.Repository().SaveIngredient(ctx, Ingredient{Name: "Rice", Cost: &cost, Stockcode: &code, Pantry: true, Public: true})
	require.NoError(t, err)
	privateID, err := svc.Repository().SaveIngredient(ctx, Ingredient{Name: "Secret sauce", Cost: &cost, Public: false})
	require.NoError(t, err)

	t.Run("SortsAreContiguousPerBucket", func(t *testing.T) {
		appendItem(t, svc, week, "Apples", BucketFresh)
		appendItem(t, svc, week, "Flour", BucketPantry)
		appendItem(t, svc, week, "Pears", BucketFresh)

		list := listWeek(t, svc, week)
		assert.Equal(t, []string{"Apples", "Pears"}, names(list.Fresh))
		assert.Equal(t, []string{"Flour"}, names(list.Pantry))
		requireContiguous(t, list)
	})

	t.Run("KnownIngredientSuppliesDetails", func(t *testing.T) {
		id, err := svc.Append(ctx, AppendRequest{HouseholdID: 1, Week: 12, Year: 2025, Name: "  Rice ", KnownIngredientID: &pantryID})
		require.NoError(t, err)

		list := listWeek(t, svc, week)
		last := list.Pantry[len(list.Pantry)-1]
		assert.Equal(t, id, last.ID)
		assert.Equal(t, "Rice", last.Name)
		require.NotNil(t, last.Cost)
		assert.Equal(t, 2.5, *last.Cost)
		require.NotNil(t, last.Stockcode)
		assert.Equal(t, "SC-100", *last.Stockcode)
		require.NotNil(t, last.IngredientID)
		assert.Equal(t, pantryID, *last.IngredientID)
	})

	t.Run("ExplicitBucketWinsOverIngredientHint", func(t *testing.T) {
		fresh := BucketFresh
		id, err := svc.Append(ctx, AppendRequest{HouseholdID: 1, Week: 12, Year: 2025, Name: "Rice", KnownIngredientID: &pantryID, Bucket: &fresh})
		require.NoError(t, err)

		list := listWeek(t, svc, week)
		assert.Equal(t, id, list.Fresh[len(list.Fresh)-1].ID)
		requireContiguous(t, list)
	})

	t.Run("UnknownIngredientIsFreeText", func(t *testing.T) {
		missing := int64(9999)
		id, err := svc.Append(ctx, AppendRequest{HouseholdID: 1, Week: 12, Year: 2025, Name: "Mystery", KnownIngredientID: &missing})
		require.NoError(t, err)

		list := listWeek(t, svc, week)
		last := list.Fresh[len(list.Fresh)-1]
		assert.Equal(t, id, last.ID)
		assert.Nil(t, last.Cost)
		assert.Nil(t, last.Stockcode)
		assert.Nil(t, last.IngredientID)
	})

	t.Run("PrivateIngredientIsIgnored", func(t *testing.T) {
		_, err := svc.Append(ctx, AppendRequest{HouseholdID: 1, Week: 12, Year: 2025, Name: "Sauce", KnownIngredientID: &privateID})
		require.NoError(t, err)

		list := listWeek(t, svc, week)
		last := list.Fresh[len(list.Fresh)-1]
		assert.Equal(t, "Sauce", last.Name)
		assert.Nil(t, last.Cost)
	})

	t.Run("FirstItemOfNewWeekStartsAtZero", func(t *testing.T) {
		other := Scope{HouseholdID: 1, Week: 13, Year: 2025}
		appendItem(t, svc, other, "Milk", BucketFresh)
		list := listWeek(t, svc, other)
		require.Len(t, list.Fresh, 1)
		assert.Equal(t, 0, list.Fresh[0].Sort)
		assert.Empty(t, list.Pantry)
	})
}

func TestMoveWithinBucket(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	appendItem(t, svc, week, "a", BucketFresh)
	appendItem(t, svc, week, "b", BucketFresh)
	c := appendItem(t, svc, week, "c", BucketFresh)

	res, err := svc.Move(ctx, MoveRequest{HouseholdID: 1, ID: c, Bucket: BucketFresh, Sort: 0, Week: 12, Year: 2025})
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "a", "b"}, names(res.Fresh))
	requireContiguous(t, &List{Fresh: res.Fresh, Pantry: res.Pantry})
	assert.Equal(t, res.Fresh, listWeek(t, svc, week).Fresh)
}

func TestMoveAcrossBuckets(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	appendItem(t, svc, week, "a", BucketFresh)
	b := appendItem(t, svc, week, "b", BucketFresh)
	appendItem(t, svc, week, "c", BucketFresh)
	appendItem(t, svc, week, "d", BucketPantry)

	res, err := svc.Move(ctx, MoveRequest{HouseholdID: 1, ID: b, Bucket: BucketPantry, Sort: 0, Week: 12, Year: 2025})
	require.NoError(t, err)

	list := &List{Fresh: res.Fresh, Pantry: res.Pantry}
	assert.Equal(t, []string{"a", "c"}, names(list.Fresh))
	assert.Equal(t, []string{"b", "d"}, names(list.Pantry))
	requireContiguous(t, list)
}

func TestMoveClampsTargetToEnd(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	a := appendItem(t, svc, week, "a", BucketFresh)
	appendItem(t, svc, week, "b", BucketFresh)
	appendItem(t, svc, week, "c", BucketFresh)

	res, err := svc.Move(ctx, MoveRequest{HouseholdID: 1, ID: a, Bucket: BucketFresh, Sort: 500, Week: 12, Year: 2025})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c", "a"}, names(res.Fresh))
	requireContiguous(t, &List{Fresh: res.Fresh, Pantry: res.Pantry})
}

func TestMoveToCurrentPositionIsNoOp(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	appendItem(t, svc, week, "a", BucketFresh)
	b := appendItem(t, svc, week, "b", BucketFresh)
	appendItem(t, svc, week, "c", BucketFresh)
	appendItem(t, svc, week, "d", BucketPantry)
	before := listWeek(t, svc, week)

	for i := 0; i < 2; i++ {
		_, err := svc.Move(ctx, MoveRequest{HouseholdID: 1, ID: b, Bucket: BucketFresh, Sort: 1, Week: 12, Year: 2025})
		require.NoError(t, err)
		assert.Equal(t, before, listWeek(t, svc, week))
	}
}

func TestMoveRejectsInvalidInputBeforeStoreAccess(t *testing.T) {
	svc := newService(t)
	require.NoError(t, svc.db.Close())

	_, err := svc.Move(context.Background(), MoveRequest{HouseholdID: 1, ID: 1, Bucket: BucketFresh, Sort: 1500, Week: 12, Year: 2025})
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	assert.Equal(t, "invalid_sort", shared.CodeOf(err))
}

func TestMoveIsScopedByHousehold(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	appendItem(t, svc, week, "a", BucketFresh)
	b := appendItem(t, svc, week, "b", BucketFresh)
	before := listWeek(t, svc, week)

	_, err := svc.Move(ctx, MoveRequest{HouseholdID: 2, ID: b, Bucket: BucketFresh, Sort: 0, Week: 12, Year: 2025})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	assert.Equal(t, "item_not_found", shared.CodeOf(err))

	// Wrong week is reported the same way.
	_, err = svc.Move(ctx, MoveRequest{HouseholdID: 1, ID: b, Bucket: BucketFresh, Sort: 0, Week: 13, Year: 2025})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	assert.Equal(t, before, listWeek(t, svc, week))
	assert.Empty(t, listWeek(t, svc, Scope{HouseholdID: 2, Week: 12, Year: 2025}).Fresh)
}

func TestDeleteRenumbersBucket(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	appendItem(t, svc, week, "a", BucketFresh)
	b := appendItem(t, svc, week, "b", BucketFresh)
	appendItem(t, svc, week, "c", BucketFresh)
	appendItem(t, svc, week, "d", BucketPantry)

	require.NoError(t, svc.Delete(ctx, DeleteRequest{HouseholdID: 1, ID: b, Week: 12, Year: 2025}))

	list := listWeek(t, svc, week)
	assert.Equal(t, []string{"a", "c"}, names(list.Fresh))
	requireContiguous(t, list)

	err := svc.Delete(ctx, DeleteRequest{HouseholdID: 1, ID: b, Week: 12, Year: 2025})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	err = svc.Delete(ctx, DeleteRequest{HouseholdID: 2, ID: list.Fresh[0].ID, Week: 12, Year: 2025})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	assert.Len(t, listWeek(t, svc, week).Fresh, 2)
}

func TestSetPurchased(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	a := appendItem(t, svc, week, "a", BucketFresh)

	require.NoError(t, svc.SetPurchased(ctx, PurchaseRequest{HouseholdID: 1, ID: a, Week: 12, Year: 2025, Purchased: true}))
	assert.True(t, listWeek(t, svc, week).Fresh[0].Purchased)

	// Setting the same value again still matches the row.
	require.NoError(t, svc.SetPurchased(ctx, PurchaseRequest{HouseholdID: 1, ID: a, Week: 12, Year: 2025, Purchased: true}))

	err := svc.SetPurchased(ctx, PurchaseRequest{HouseholdID: 2, ID: a, Week: 12, Year: 2025, Purchased: false})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	assert.True(t, listWeek(t, svc, week).Fresh[0].Purchased)
}

func TestConcurrentAppendsGetDistinctSorts(t *testing.T) {
	svc := newService(t)
	const n = 12

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := svc.Append(context.Background(), AppendRequest{
				HouseholdID: 1, Week: 12, Year: 2025, Name: fmt.Sprintf("item-%d", i),
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	list := listWeek(t, svc, week)
	require.Len(t, list.Fresh, n)
	requireContiguous(t, list)
}

func TestConcurrentMovesKeepContiguity(t *testing.T) {
	svc := newService(t)
	var ids []int64
	for i := 0; i < 6; i++ {
		ids = append(ids, appendItem(t, svc, week, fmt.Sprintf("item-%d", i), BucketFresh))
	}

	var g errgroup.Group
	for i, id := range ids {
		bucket := BucketFromFresh(i%2 == 0)
		g.Go(func() error {
			_, err := svc.Move(context.Background(), MoveRequest{
				HouseholdID: 1, ID: id, Bucket: bucket, Sort: (i * 7) % 4, Week: 12, Year: 2025,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	list := listWeek(t, svc, week)
	assert.Len(t, append(list.Fresh, list.Pantry...), 6)
	requireContiguous(t, list)
}

func TestRandomOperationsPreserveContiguity(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	rng := rand.New(rand.NewPCG(42, 7))

	var live []int64
	for step := 0; step < 60; step++ {
		switch op := rng.IntN(4); {
		case op == 0 || len(live) == 0:
			bucket := BucketFromFresh(rng.IntN(2) == 0)
			live = append(live, appendItem(t, svc, week, fmt.Sprintf("step-%d", step), bucket))
		case op == 1 || op == 2:
			id := live[rng.IntN(len(live))]
			_, err := svc.Move(ctx, MoveRequest{
				HouseholdID: 1, ID: id, Bucket: BucketFromFresh(rng.IntN(2) == 0),
				Sort: rng.IntN(len(live) + 2), Week: 12, Year: 2025,
			})
			require.NoError(t, err)
		default:
			i := rng.IntN(len(live))
			require.NoError(t, svc.Delete(ctx, DeleteRequest{HouseholdID: 1, ID: live[i], Week: 12, Year: 2025}))
			live = append(live[:i], live[i+1:]...)
		}

		list := listWeek(t, svc, week)
		require.Len(t, append(list.Fresh, list.Pantry...), len(live), "step %d", step)
		requireContiguous(t, list)
	}
}

func TestListValidatesScope(t *testing.T) {
	svc := newService(t)
	_, err := svc.List(context.Background(), Scope{HouseholdID: 1, Week: 0, Year: 2025})
	assert.Equal(t, "invalid_week", shared.CodeOf(err))
}

func TestUnavailableStore(t *testing.T) {
	svc := newService(t)
	require.NoError(t, svc.db.Close())

	_, err := svc.Append(context.Background(), AppendRequest{HouseholdID: 1, Week: 12, Year: 2025, Name: "Milk"})
	assert.Equal(t, shared.KindUnavailable, shared.KindOf(err))
	assert.Equal(t, "store_unavailable", shared.CodeOf(err))
}
