package querycache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/cacheinfra"
	"github.com/goliatone/go-query-cache/pkg/testsupport"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryService(t *testing.T) *cache.Service {
	t.Helper()
	store, err := cacheinfra.NewMemoryStore(cacheinfra.DefaultConfig())
	require.NoError(t, err)
	return cache.NewService(store)
}

func newRedisService(t *testing.T) (*cache.Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewService(cacheinfra.NewRedisStore(client, cacheinfra.RedisConfig{Addr: mr.Addr()})), mr
}

func TestBuildCacheKey_Shape(t *testing.T) {
	key := BuildCacheKey("review", ClusterSpec{"bookId"}, map[string]any{"bookId": "B1"}, map[string]any{"limit": 10})

	entity, sig, hash, ok := ParseKey(key)
	require.True(t, ok)
	assert.Equal(t, "review", entity)
	assert.Equal(t, "c:B1", sig)
	assert.Equal(t, cache.Fingerprint(map[string]any{"limit": 10}), hash)
	assert.Len(t, hash, 40)
}

func TestBuildCacheKey_EmptySpec(t *testing.T) {
	key := BuildCacheKey("tag", nil, map[string]any{"name": "go"}, nil)
	assert.True(t, strings.HasPrefix(key, "qcache:tag:c:"), key)
	assert.Equal(t, "qcache:tag:c:"+cache.Fingerprint(map[string]any{}), key)
}

func TestBuildCacheKey_IgnoresVolatileFields(t *testing.T) {
	spec := ClusterSpec{"bookId"}
	where := map[string]any{"bookId": "B1", "rating": map[string]any{"gte": 4}}

	a := BuildCacheKey("review", spec, where, map[string]any{"limit": 10, "requestId": uuid.NewString()})
	b := BuildCacheKey("review", spec, where, map[string]any{"limit": 10, "requestId": uuid.NewString()})
	assert.Equal(t, a, b)

	c := BuildCacheKey("review", spec, where, map[string]any{"limit": 20, "requestId": uuid.NewString()})
	assert.NotEqual(t, a, c)

	custom := BuildCacheKey("review", spec, where, map[string]any{"limit": 10, "traceId": "t1"}, "traceId")
	assert.Equal(t, a, custom)
}

func TestBuildCacheKey_NestedAndMatchesTopLevel(t *testing.T) {
	spec := ClusterSpec{"bookId"}
	top := BuildCacheKey("review", spec, map[string]any{"bookId": "B1"}, map[string]any{})
	nested := BuildCacheKey("review", spec, map[string]any{"and": []any{map[string]any{"bookId": "B1"}}}, map[string]any{})
	assert.Equal(t, top, nested)
}

func TestSignature_Tokens(t *testing.T) {
	spec := ClusterSpec{"bookId", "userId"}

	tests := []struct {
		name  string
		where map[string]any
		want  string
	}{
		{"both pinned", map[string]any{"bookId": "B1", "userId": 7}, "c:B1:7"},
		{"missing dimension", map[string]any{"bookId": "B1"}, "c:B1:all"},
		{"eq operator", map[string]any{"bookId": map[string]any{"eq": "B2"}}, "c:B2:all"},
		{"other operator", map[string]any{"bookId": map[string]any{"ne": "B2"}}, "c:all:all"},
		{"list", map[string]any{"bookId": []any{"B1", "B2"}}, "c:all:all"},
		{"null literal", map[string]any{"bookId": "null"}, "c:all:all"},
		{"whole float", map[string]any{"userId": float64(7)}, "c:all:7"},
		{"top level wins over and", map[string]any{"bookId": "B1", "and": []any{map[string]any{"bookId": "B9"}}}, "c:B1:all"},
		{"first and child wins", map[string]any{"and": []any{
			map[string]any{"rating": 5},
			map[string]any{"userId": map[string]any{"eq": 3}},
			map[string]any{"userId": 4},
		}}, "c:all:3"},
		{"or is not searched", map[string]any{"or": []any{map[string]any{"bookId": "B1"}}}, "c:all:all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Signature(spec, tt.where))
		})
	}
}

func TestSignature_Fixtures(t *testing.T) {
	for _, tc := range testsupport.LoadCases(t, testsupport.FixturePath("signatures.json")) {
		t.Run(tc.Name, func(t *testing.T) {
			var input struct {
				Spec  []string       `json:"spec"`
				Where map[string]any `json:"where"`
			}
			var want string
			tc.DecodeInput(t, &input)
			tc.DecodeWant(t, &want)

			assert.Equal(t, want, Signature(ClusterSpec(input.Spec), input.Where))
		})
	}
}

func TestPrefixes_Enumeration(t *testing.T) {
	got := Prefixes("review", ClusterSpec{"bookId", "userId"}, map[string]any{"bookId": "B1", "userId": 7})
	assert.ElementsMatch(t, []string{
		"qcache:review:c:B1:7:",
		"qcache:review:c:B1:all:",
		"qcache:review:c:all:7:",
		"qcache:review:c:all:all:",
	}, got)

	assert.Equal(t, []string{"qcache:tag:c:"}, Prefixes("tag", nil, map[string]any{"id": 1}))

	missing := Prefixes("review", ClusterSpec{"bookId", "userId"}, map[string]any{"bookId": "B1"})
	assert.ElementsMatch(t, []string{"qcache:review:c:B1:all:", "qcache:review:c:all:all:"}, missing)
}

func TestInvalidateCache_PurgesEverySignatureVariant(t *testing.T) {
	ctx := context.Background()
	spec := ClusterSpec{"bookId", "userId"}
	qc := New(newMemoryService(t), "review", spec)

	review := map[string]any{"id": "r1", "bookId": "B1", "userId": 7}

	wheres := []map[string]any{
		{"bookId": "B1", "userId": 7},
		{"bookId": "B1"},
		{"userId": 7},
		{},
		{"and": []any{map[string]any{"bookId": "B1"}, map[string]any{"rating": map[string]any{"gte": 3}}}},
	}
	var stale []string
	for i, where := range wheres {
		key := qc.Key(where, map[string]any{"limit": 10, "page": i})
		qc.Write(ctx, key, []string{"r1"}, 0)
		stale = append(stale, key)
	}

	unrelated := qc.Key(map[string]any{"bookId": "B2", "userId": 8}, nil)
	qc.Write(ctx, unrelated, []string{"r2"}, 0)

	removed := qc.InvalidateCache(ctx, review)
	assert.Equal(t, len(stale), removed)

	for _, key := range stale {
		var out []string
		assert.False(t, qc.Read(ctx, key, &out), "expected miss for %s", key)
	}
	var out []string
	assert.True(t, qc.Read(ctx, unrelated, &out))
	assert.Equal(t, []string{"r2"}, out)
}

func TestInvalidateCache_OldAndNewState(t *testing.T) {
	ctx := context.Background()
	qc := New(newMemoryService(t), "review", ClusterSpec{"bookId"})

	before := qc.Key(map[string]any{"bookId": "B1"}, nil)
	after := qc.Key(map[string]any{"bookId": "B2"}, nil)
	qc.Write(ctx, before, 1, 0)
	qc.Write(ctx, after, 2, 0)

	type review struct {
		ID     string `json:"id"`
		BookID string `json:"bookId"`
	}
	qc.InvalidateCache(ctx, review{ID: "r1", BookID: "B1"}, review{ID: "r1", BookID: "B2"})

	var v int
	assert.False(t, qc.Read(ctx, before, &v))
	assert.False(t, qc.Read(ctx, after, &v))
}

func TestInvalidateCache_TypedClusterValues(t *testing.T) {
	ctx := context.Background()

	type event struct {
		ID      string    `json:"id"`
		OwnerID int64     `json:"ownerId"`
		Day     time.Time `json:"day"`
	}
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	rec := event{ID: "e1", OwnerID: 1<<53 + 1, Day: day}

	tests := []struct {
		name  string
		field string
		where map[string]any
		token string
	}{
		{"int64 above 2^53", "ownerId", map[string]any{"ownerId": rec.OwnerID}, "9007199254740993"},
		{"int64 in eq operator", "ownerId", map[string]any{"ownerId": map[string]any{"eq": rec.OwnerID}}, "9007199254740993"},
		{"time value", "day", map[string]any{"day": day}, "2024-01-02T00:00:00Z"},
		{"time inside and", "day", map[string]any{"and": []any{map[string]any{"day": day}}}, "2024-01-02T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qc := New(newMemoryService(t), "event", ClusterSpec{tt.field})
			key := qc.Key(tt.where, nil)
			assert.True(t, strings.HasPrefix(key, "qcache:event:c:"+tt.token+":"), key)

			qc.Write(ctx, key, []string{"e1"}, 0)
			assert.Equal(t, 1, qc.InvalidateCache(ctx, rec))

			var out []string
			assert.False(t, qc.Read(ctx, key, &out), "expected miss for %s", key)
		})
	}
}

func TestInvalidateCache_DoesNotTouchOtherEntities(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService(t)
	books := New(svc, "book", nil)
	shelves := New(svc, "bookshelf", nil)

	bookKey := books.Key(nil, nil)
	shelfKey := shelves.Key(nil, nil)
	books.Write(ctx, bookKey, 1, 0)
	shelves.Write(ctx, shelfKey, 1, 0)

	books.InvalidateCache(ctx, map[string]any{"id": "1"})

	var v int
	assert.False(t, books.Read(ctx, bookKey, &v))
	assert.True(t, shelves.Read(ctx, shelfKey, &v))
}

func TestInvalidateAll_Redis(t *testing.T) {
	ctx := context.Background()
	svc, mr := newRedisService(t)
	qc := New(svc, "review", ClusterSpec{"bookId"})

	for _, b := range []string{"B1", "B2", "B3"} {
		qc.Write(ctx, qc.Key(map[string]any{"bookId": b}, nil), b, 0)
	}
	_ = mr.Set("qcache:reviewer:c:x", "keep")

	assert.Equal(t, 3, qc.InvalidateAll(ctx))
	assert.Equal(t, []string{"qcache:reviewer:c:x"}, mr.Keys())
}

func TestGetOrFetch(t *testing.T) {
	ctx := context.Background()
	qc := New(newMemoryService(t), "review", ClusterSpec{"bookId"})
	where := map[string]any{"bookId": "B1"}

	calls := 0
	fetch := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"r1", "r2"}, nil
	}

	first, err := GetOrFetch(ctx, qc, where, map[string]any{"requestId": "a"}, fetch)
	require.NoError(t, err)
	second, err := GetOrFetch(ctx, qc, where, map[string]any{"requestId": "b"}, fetch)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	qc.InvalidateCache(ctx, map[string]any{"bookId": "B1"})
	_, err = GetOrFetch(ctx, qc, where, nil, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrFetch_PropagatesFetchError(t *testing.T) {
	qc := New(newMemoryService(t), "review", nil)
	boom := errors.New("db down")

	_, err := GetOrFetch(context.Background(), qc, nil, nil, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}
