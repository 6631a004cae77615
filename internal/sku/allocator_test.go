package sku

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/pkg/db/dbtest"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
)

type fakeCategories struct {
	rows map[uuid.UUID]*models.Category
	err  error
}

func (f *fakeCategories) FindCategory(_ context.Context, id uuid.UUID) (*models.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func seedTree() (*fakeCategories, uuid.UUID, uuid.UUID) {
	rootID := uuid.New()
	childID := uuid.New()
	root := &models.Category{ID: rootID, Code: "ABA", Name: "Abayas"}
	child := &models.Category{ID: childID, Code: "BLK", Name: "Black", ParentID: &rootID, Parent: root}
	return &fakeCategories{rows: map[uuid.UUID]*models.Category{rootID: root, childID: child}}, rootID, childID
}

func TestPrefix(t *testing.T) {
	parentID := uuid.New()
	cases := []struct {
		name     string
		category *models.Category
		want     string
		wantErr  bool
	}{
		{name: "root", category: &models.Category{Code: "aba"}, want: "MA-ABA"},
		{name: "child", category: &models.Category{Code: "BLK", ParentID: &parentID, Parent: &models.Category{Code: "ABA"}}, want: "MA-ABA-BLK"},
		{name: "empty code", category: &models.Category{Code: " "}, wantErr: true},
		{name: "parent not loaded", category: &models.Category{Code: "BLK", ParentID: &parentID}, wantErr: true},
		{name: "nil", category: nil, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Prefix(tc.category)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGenerateSequentialForChildCategory(t *testing.T) {
	client := dbtest.Open(t)
	categories, _, childID := seedTree()
	alloc, err := NewAllocator(categories, NewGormSequence(client.DB()), nil, nil)
	require.NoError(t, err)

	for i, want := range []string{"MA-ABA-BLK-00001", "MA-ABA-BLK-00002", "MA-ABA-BLK-00003"} {
		res, err := alloc.Generate(context.Background(), &childID)
		require.NoError(t, err)
		assert.False(t, res.Degraded)
		assert.Equal(t, want, res.SKU, "allocation %d", i)
	}
}

func TestGenerateConcurrentCallersGetDistinctGaplessValues(t *testing.T) {
	client := dbtest.Open(t)
	categories, _, childID := seedTree()
	alloc, err := NewAllocator(categories, NewGormSequence(client.DB()), nil, nil)
	require.NoError(t, err)

	const n = 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		got  []int64
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := alloc.Generate(context.Background(), &childID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			got = append(got, res.Value)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, got, n)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		assert.Equal(t, int64(i+1), v)
	}

	current, err := NewGormSequence(client.DB()).Current(context.Background(), "MA-ABA-BLK")
	require.NoError(t, err)
	assert.Equal(t, int64(n), current)
}

func TestGeneratePrefixesHaveIndependentCounters(t *testing.T) {
	client := dbtest.Open(t)
	categories, rootID, childID := seedTree()
	alloc, err := NewAllocator(categories, NewGormSequence(client.DB()), nil, nil)
	require.NoError(t, err)

	child, err := alloc.Generate(context.Background(), &childID)
	require.NoError(t, err)
	root, err := alloc.Generate(context.Background(), &rootID)
	require.NoError(t, err)

	assert.Equal(t, "MA-ABA-BLK-00001", child.SKU)
	assert.Equal(t, "MA-ABA-00001", root.SKU)
}

func TestGenerateFallsBackWhenCategoryMissing(t *testing.T) {
	categories, _, _ := seedTree()
	alloc, err := NewAllocator(categories, &countingSequence{}, nil, nil)
	require.NoError(t, err)
	alloc.now = func() time.Time { return time.UnixMilli(1700000000123) }

	unknown := uuid.New()
	res, err := alloc.Generate(context.Background(), &unknown)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, ReasonCategoryUnknown, res.Reason)
	assert.Equal(t, "MA-XXX-1700000000123", res.SKU)

	res, err = alloc.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, ReasonNoCategory, res.Reason)
}

func TestGenerateSurfacesStoreFailures(t *testing.T) {
	categories := &fakeCategories{err: errors.New("connection reset")}
	alloc, err := NewAllocator(categories, &countingSequence{}, nil, nil)
	require.NoError(t, err)

	id := uuid.New()
	_, err = alloc.Generate(context.Background(), &id)
	require.Error(t, err)
}

func TestRedisSequenceUsesNamespacedKey(t *testing.T) {
	fake := &fakeIncr{values: map[string]int64{}}
	seq, err := NewRedisSequence(fake)
	require.NoError(t, err)

	v1, err := seq.Next(context.Background(), "MA-ABA")
	require.NoError(t, err)
	v2, err := seq.Next(context.Background(), "MA-ABA")
	require.NoError(t, err)

	assert.Equal(t, int64(1), v1)
	assert.Equal(t, int64(2), v2)
	assert.Equal(t, int64(2), fake.values["pos:counter:sku:MA-ABA"])
}

type countingSequence struct {
	n int64
}

func (s *countingSequence) Next(context.Context, string) (int64, error) {
	s.n++
	return s.n, nil
}

func (s *countingSequence) Backend() string { return "memory" }

type fakeIncr struct {
	values map[string]int64
}

func (f *fakeIncr) Incr(_ context.Context, key string) (int64, error) {
	f.values[key]++
	return f.values[key], nil
}

func (f *fakeIncr) SKUCounterKey(prefix string) string {
	return "pos:counter:sku:" + prefix
}
