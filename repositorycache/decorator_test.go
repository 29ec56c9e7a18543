package repositorycache

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/cacheinfra"
	"github.com/goliatone/go-query-cache/query"
	"github.com/goliatone/go-query-cache/searchindex"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	_ "github.com/lib/pq"
)

// Review is the test entity. json and column names match so filter
// objects and cluster fields use the same names.
type Review struct {
	ID       string `json:"id" bun:"id,pk"`
	BookID   string `json:"book_id" bun:"book_id"`
	Rating   int    `json:"rating" bun:"rating"`
	IsActive *bool  `json:"is_active,omitempty" bun:"is_active"`
}

func inactive() *bool {
	v := false
	return &v
}

// mockRepository is an in-memory repository that records method calls and
// renders the SQL its List criteria would produce.
type mockRepository struct {
	mu      sync.Mutex
	db      *bun.DB
	rows    map[string]Review
	calls   []string
	lastSQL string
	getErr  error
}

func newMockRepository(t *testing.T) *mockRepository {
	t.Helper()
	sqldb, err := sql.Open("postgres", "postgres://localhost/unused?sslmode=disable")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return &mockRepository{db: db, rows: map[string]Review{}}
}

func (m *mockRepository) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

func (m *mockRepository) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (m *mockRepository) sorted() []Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Review, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockRepository) render(criteria []repository.SelectCriteria) {
	q := m.db.NewSelect().Model((*Review)(nil))
	for _, c := range criteria {
		q = c(q)
	}
	m.mu.Lock()
	m.lastSQL = q.String()
	m.mu.Unlock()
}

func (m *mockRepository) put(r Review) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID] = r
}

func (m *mockRepository) Get(ctx context.Context, criteria ...repository.SelectCriteria) (Review, error) {
	m.recordCall("Get")
	rows := m.sorted()
	if len(rows) == 0 {
		return Review{}, errors.New("not found")
	}
	return rows[0], nil
}

func (m *mockRepository) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (Review, error) {
	m.recordCall("GetByID")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return Review{}, m.getErr
	}
	r, ok := m.rows[id]
	if !ok {
		return Review{}, errors.New("not found")
	}
	return r, nil
}

func (m *mockRepository) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]Review, int, error) {
	m.recordCall("List")
	m.render(criteria)
	rows := m.sorted()
	return rows, len(rows), nil
}

func (m *mockRepository) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	m.recordCall("Count")
	m.render(criteria)
	return len(m.sorted()), nil
}

func (m *mockRepository) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (Review, error) {
	m.recordCall("GetByIdentifier")
	return m.GetByID(ctx, identifier)
}

func (m *mockRepository) Create(ctx context.Context, record Review, criteria ...repository.InsertCriteria) (Review, error) {
	m.recordCall("Create")
	m.put(record)
	return record, nil
}

func (m *mockRepository) CreateTx(ctx context.Context, tx bun.IDB, record Review, criteria ...repository.InsertCriteria) (Review, error) {
	return m.Create(ctx, record, criteria...)
}

func (m *mockRepository) CreateMany(ctx context.Context, records []Review, criteria ...repository.InsertCriteria) ([]Review, error) {
	m.recordCall("CreateMany")
	for _, r := range records {
		m.put(r)
	}
	return records, nil
}

func (m *mockRepository) CreateManyTx(ctx context.Context, tx bun.IDB, records []Review, criteria ...repository.InsertCriteria) ([]Review, error) {
	return m.CreateMany(ctx, records, criteria...)
}

func (m *mockRepository) GetOrCreate(ctx context.Context, record Review) (Review, error) {
	m.recordCall("GetOrCreate")
	m.mu.Lock()
	existing, ok := m.rows[record.ID]
	m.mu.Unlock()
	if ok {
		return existing, nil
	}
	m.put(record)
	return record, nil
}

func (m *mockRepository) GetOrCreateTx(ctx context.Context, tx bun.IDB, record Review) (Review, error) {
	return m.GetOrCreate(ctx, record)
}

func (m *mockRepository) Update(ctx context.Context, record Review, criteria ...repository.UpdateCriteria) (Review, error) {
	m.recordCall("Update")
	m.put(record)
	return record, nil
}

func (m *mockRepository) UpdateTx(ctx context.Context, tx bun.IDB, record Review, criteria ...repository.UpdateCriteria) (Review, error) {
	return m.Update(ctx, record, criteria...)
}

func (m *mockRepository) UpdateMany(ctx context.Context, records []Review, criteria ...repository.UpdateCriteria) ([]Review, error) {
	m.recordCall("UpdateMany")
	for _, r := range records {
		m.put(r)
	}
	return records, nil
}

func (m *mockRepository) UpdateManyTx(ctx context.Context, tx bun.IDB, records []Review, criteria ...repository.UpdateCriteria) ([]Review, error) {
	return m.UpdateMany(ctx, records, criteria...)
}

func (m *mockRepository) Upsert(ctx context.Context, record Review, criteria ...repository.UpdateCriteria) (Review, error) {
	m.recordCall("Upsert")
	m.put(record)
	return record, nil
}

func (m *mockRepository) UpsertTx(ctx context.Context, tx bun.IDB, record Review, criteria ...repository.UpdateCriteria) (Review, error) {
	return m.Upsert(ctx, record, criteria...)
}

func (m *mockRepository) UpsertMany(ctx context.Context, records []Review, criteria ...repository.UpdateCriteria) ([]Review, error) {
	return m.UpdateMany(ctx, records, criteria...)
}

func (m *mockRepository) UpsertManyTx(ctx context.Context, tx bun.IDB, records []Review, criteria ...repository.UpdateCriteria) ([]Review, error) {
	return m.UpdateMany(ctx, records, criteria...)
}

func (m *mockRepository) Delete(ctx context.Context, record Review) error {
	m.recordCall("Delete")
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, record.ID)
	return nil
}

func (m *mockRepository) DeleteTx(ctx context.Context, tx bun.IDB, record Review) error {
	return m.Delete(ctx, record)
}

func (m *mockRepository) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	m.recordCall("DeleteMany")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = map[string]Review{}
	return nil
}

func (m *mockRepository) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return m.DeleteMany(ctx, criteria...)
}

func (m *mockRepository) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return m.DeleteMany(ctx, criteria...)
}

func (m *mockRepository) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return m.DeleteMany(ctx, criteria...)
}

func (m *mockRepository) ForceDelete(ctx context.Context, record Review) error {
	return m.Delete(ctx, record)
}

func (m *mockRepository) ForceDeleteTx(ctx context.Context, tx bun.IDB, record Review) error {
	return m.Delete(ctx, record)
}

func (m *mockRepository) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (Review, error) {
	return m.Get(ctx, criteria...)
}

func (m *mockRepository) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (Review, error) {
	return m.GetByID(ctx, id, criteria...)
}

func (m *mockRepository) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]Review, int, error) {
	return m.List(ctx, criteria...)
}

func (m *mockRepository) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return m.Count(ctx, criteria...)
}

func (m *mockRepository) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (Review, error) {
	return m.GetByIdentifier(ctx, identifier, criteria...)
}

func (m *mockRepository) Raw(ctx context.Context, sql string, args ...any) ([]Review, error) {
	panic("Raw not implemented in mock")
}

func (m *mockRepository) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]Review, error) {
	panic("RawTx not implemented in mock")
}

func (m *mockRepository) Handlers() repository.ModelHandlers[Review] {
	return repository.ModelHandlers[Review]{}
}

// mockIndex is a searchindex.Client keeping documents in a map.
type mockIndex struct {
	mu   sync.Mutex
	docs map[string]searchindex.Document
}

func newMockIndex() *mockIndex {
	return &mockIndex{docs: map[string]searchindex.Document{}}
}

func (m *mockIndex) Search(ctx context.Context, index string, req searchindex.SearchRequest) (searchindex.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res searchindex.SearchResult
	for id, doc := range m.docs {
		res.Hits = append(res.Hits, searchindex.Hit{ID: id, Source: doc})
	}
	res.Total = int64(len(res.Hits))
	return res, nil
}

func (m *mockIndex) Get(ctx context.Context, index, id string) (searchindex.Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	return doc, ok, nil
}

func (m *mockIndex) Index(ctx context.Context, index, id string, doc searchindex.Document, refresh bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.docs[id]
	m.docs[id] = doc
	return !exists, nil
}

func (m *mockIndex) Delete(ctx context.Context, index, id string, refresh bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.docs[id]
	delete(m.docs, id)
	return exists, nil
}

func (m *mockIndex) UpdateByQuery(ctx context.Context, index string, req searchindex.UpdateByQueryRequest) (searchindex.UpdateResult, error) {
	return searchindex.UpdateResult{}, nil
}

func (m *mockIndex) Count(ctx context.Context, index string, q map[string]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.docs)), nil
}

func (m *mockIndex) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	return ok
}

func newService(t *testing.T) *cache.Service {
	t.Helper()
	store, err := cacheinfra.NewMemoryStore(cacheinfra.DefaultConfig())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	return cache.NewService(store)
}

func newRepo(t *testing.T, opts ...Option) (*CachedRepository[Review], *mockRepository) {
	t.Helper()
	base := newMockRepository(t)
	opts = append([]Option{
		WithClusterSpec("book_id"),
		WithIndexFields("book_id"),
		WithActivityField("is_active"),
	}, opts...)
	return New[Review](base, newService(t), opts...), base
}

func TestNew(t *testing.T) {
	cached, base := newRepo(t)

	if cached == nil {
		t.Fatal("New() returned nil")
	}
	if cached.base != base {
		t.Error("base repository not stored correctly")
	}
	if got := cached.Entity(); got != "review" {
		t.Errorf("Entity() = %q, want review", got)
	}
	if got := cached.Entities().Entity(); got != "review" {
		t.Errorf("Entities().Entity() = %q, want review", got)
	}
	if got := cached.Queries().Spec(); len(got) != 1 || got[0] != "book_id" {
		t.Errorf("Queries().Spec() = %v", got)
	}

	named := New[Review](base, newService(t), WithEntityName("bookReview"))
	if named.Entity() != "bookReview" {
		t.Errorf("WithEntityName not applied: %q", named.Entity())
	}
}

func TestGetByID_PointCache(t *testing.T) {
	ctx := context.Background()
	cached, base := newRepo(t)
	base.put(Review{ID: "r1", BookID: "B1", Rating: 4})

	for i := 0; i < 3; i++ {
		got, err := cached.GetByID(ctx, "r1")
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Rating != 4 {
			t.Fatalf("GetByID rating = %d", got.Rating)
		}
	}
	if n := base.callCount("GetByID"); n != 1 {
		t.Errorf("base GetByID calls = %d, want 1", n)
	}

	criteria := func(q *bun.SelectQuery) *bun.SelectQuery { return q }
	if _, err := cached.GetByID(ctx, "r1", criteria); err != nil {
		t.Fatalf("GetByID with criteria: %v", err)
	}
	if _, err := cached.GetByID(WithoutCache(ctx), "r1"); err != nil {
		t.Fatalf("GetByID without cache: %v", err)
	}
	if n := base.callCount("GetByID"); n != 3 {
		t.Errorf("base GetByID calls = %d, want 3", n)
	}
}

func TestGetByID_ErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	cached, base := newRepo(t)
	base.getErr = errors.New("db down")

	if _, err := cached.GetByID(ctx, "r1"); err == nil {
		t.Fatal("expected error")
	}
	base.getErr = nil
	base.put(Review{ID: "r1"})

	if _, err := cached.GetByID(ctx, "r1"); err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if n := base.callCount("GetByID"); n != 2 {
		t.Errorf("base GetByID calls = %d, want 2", n)
	}
}

func TestListWhere_CompilesAndCaches(t *testing.T) {
	ctx := context.Background()
	cached, base := newRepo(t)
	base.put(Review{ID: "r1", BookID: "B1", Rating: 5})

	where := map[string]any{"book_id": "B1", "rating": map[string]any{"gte": 3}}

	for _, requestID := range []string{"a", "b"} {
		records, total, err := cached.ListWhere(ctx, where, map[string]any{"limit": 10, "order": "rating DESC", "requestId": requestID})
		if err != nil {
			t.Fatalf("ListWhere: %v", err)
		}
		if total != 1 || len(records) != 1 {
			t.Fatalf("ListWhere = %v, %d", records, total)
		}
	}

	if n := base.callCount("List"); n != 1 {
		t.Errorf("base List calls = %d, want 1", n)
	}

	for _, want := range []string{`"book_id" = 'B1'`, `"rating" >= 3`, `ORDER BY "rating" DESC`, `LIMIT 10`} {
		if !strings.Contains(base.lastSQL, want) {
			t.Errorf("SQL %q does not contain %q", base.lastSQL, want)
		}
	}

	if _, _, err := cached.ListWhere(ctx, where, map[string]any{"limit": 20}); err != nil {
		t.Fatalf("ListWhere: %v", err)
	}
	if n := base.callCount("List"); n != 2 {
		t.Errorf("different page should miss, List calls = %d", n)
	}
}

func TestListWhere_NonClusterFiltersDoNotShareResults(t *testing.T) {
	ctx := context.Background()
	cached, base := newRepo(t)
	base.put(Review{ID: "r1", BookID: "B1", Rating: 5})
	base.put(Review{ID: "r2", BookID: "B1", Rating: 1})

	high := map[string]any{"book_id": "B1", "rating": map[string]any{"gte": 3}}
	low := map[string]any{"book_id": "B1", "rating": map[string]any{"lt": 2}}

	if _, _, err := cached.ListWhere(ctx, high, nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := cached.ListWhere(ctx, low, nil); err != nil {
		t.Fatal(err)
	}
	if n := base.callCount("List"); n != 2 {
		t.Errorf("base List calls = %d, want 2", n)
	}
	if !strings.Contains(base.lastSQL, `"rating" < 2`) {
		t.Errorf("second read ran %q", base.lastSQL)
	}

	highKey := cached.Queries().Key(high, queryParams("list", high, nil))
	lowKey := cached.Queries().Key(low, queryParams("list", low, nil))
	if highKey == lowKey {
		t.Errorf("filters share key %s", highKey)
	}
	if !strings.HasPrefix(highKey, "qcache:review:c:B1:") || !strings.HasPrefix(lowKey, "qcache:review:c:B1:") {
		t.Errorf("keys %s, %s should share the cluster signature", highKey, lowKey)
	}

	// Both results sit under the B1 cluster, so a B1 write clears them.
	if _, _, err := cached.ListWhere(ctx, high, nil); err != nil {
		t.Fatal(err)
	}
	if n := base.callCount("List"); n != 2 {
		t.Errorf("cached read reached base, List calls = %d", n)
	}
	if _, err := cached.Update(ctx, Review{ID: "r2", BookID: "B1", Rating: 4}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := cached.ListWhere(ctx, high, nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := cached.ListWhere(ctx, low, nil); err != nil {
		t.Fatal(err)
	}
	if n := base.callCount("List"); n != 4 {
		t.Errorf("base List calls after write = %d, want 4", n)
	}
}

func TestListWhere_CompileErrorPropagates(t *testing.T) {
	cached, base := newRepo(t)

	_, _, err := cached.ListWhere(context.Background(), map[string]any{"rating": map[string]any{"between": 3}}, nil)
	if !query.IsCompileError(err) {
		t.Fatalf("expected compile error, got %v", err)
	}
	if n := base.callCount("List"); n != 0 {
		t.Errorf("base List calls = %d, want 0", n)
	}
}

func TestCountWhere_SeparateFromList(t *testing.T) {
	ctx := context.Background()
	cached, base := newRepo(t)
	base.put(Review{ID: "r1", BookID: "B1"})
	where := map[string]any{"book_id": "B1"}

	if _, _, err := cached.ListWhere(ctx, where, nil); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		n, err := cached.CountWhere(ctx, where)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("CountWhere = %d", n)
		}
	}
	if n := base.callCount("Count"); n != 1 {
		t.Errorf("base Count calls = %d, want 1", n)
	}
}

func TestUpdate_InvalidatesOldAndNewClusters(t *testing.T) {
	ctx := context.Background()
	cached, base := newRepo(t)

	if _, err := cached.Create(ctx, Review{ID: "r1", BookID: "B1", Rating: 3}); err != nil {
		t.Fatal(err)
	}

	wheres := []map[string]any{
		{"book_id": "B1"},
		{"book_id": "B2"},
		{"rating": map[string]any{"gt": 1}},
		{"book_id": "B3"},
	}
	list := func() {
		for _, w := range wheres {
			if _, _, err := cached.ListWhere(ctx, w, nil); err != nil {
				t.Fatal(err)
			}
		}
	}

	list()
	if n := base.callCount("List"); n != 4 {
		t.Fatalf("List calls = %d, want 4", n)
	}

	if _, err := cached.Update(ctx, Review{ID: "r1", BookID: "B2", Rating: 3}); err != nil {
		t.Fatal(err)
	}

	list()
	// B1, B2 and the unpinned query are refetched, B3 stays cached.
	if n := base.callCount("List"); n != 7 {
		t.Errorf("List calls = %d, want 7", n)
	}
	if n := base.callCount("GetByID"); n != 0 {
		t.Errorf("prior state should come from the point cache, GetByID calls = %d", n)
	}
}

func TestUpdate_PriorFromBaseWhenNotCached(t *testing.T) {
	ctx := context.Background()
	cached, base := newRepo(t)
	base.put(Review{ID: "r1", BookID: "B1"})

	if _, _, err := cached.ListWhere(ctx, map[string]any{"book_id": "B1"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.Update(ctx, Review{ID: "r1", BookID: "B2"}); err != nil {
		t.Fatal(err)
	}
	if n := base.callCount("GetByID"); n != 1 {
		t.Errorf("GetByID calls = %d, want 1", n)
	}
	if _, _, err := cached.ListWhere(ctx, map[string]any{"book_id": "B1"}, nil); err != nil {
		t.Fatal(err)
	}
	if n := base.callCount("List"); n != 2 {
		t.Errorf("old cluster list should be refetched, List calls = %d", n)
	}
}

func TestFindCached_FollowsWrites(t *testing.T) {
	ctx := context.Background()
	cached, _ := newRepo(t)

	for _, r := range []Review{{ID: "r1", BookID: "B1"}, {ID: "r2", BookID: "B1"}, {ID: "r3", BookID: "B2"}} {
		if _, err := cached.Create(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if got := cached.FindCached(ctx, map[string]any{"book_id": "B1"}); len(got) != 2 {
		t.Fatalf("FindCached = %v", got)
	}

	if err := cached.Delete(ctx, Review{ID: "r1", BookID: "B1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.Update(ctx, Review{ID: "r2", BookID: "B1", IsActive: inactive()}); err != nil {
		t.Fatal(err)
	}

	if got := cached.FindCached(ctx, map[string]any{"book_id": "B1"}); len(got) != 0 {
		t.Errorf("FindCached after delete and soft delete = %v", got)
	}
	if _, ok := cached.Entities().GetEntityFromCache(ctx, "r2"); ok {
		t.Error("soft deleted record still cached")
	}
}

func TestDeleteMany_ClearsCaches(t *testing.T) {
	ctx := context.Background()
	cached, base := newRepo(t)

	if _, err := cached.CreateMany(ctx, []Review{{ID: "r1", BookID: "B1"}, {ID: "r2", BookID: "B2"}}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := cached.ListWhere(ctx, nil, nil); err != nil {
		t.Fatal(err)
	}

	if err := cached.DeleteMany(ctx); err != nil {
		t.Fatal(err)
	}

	if _, ok := cached.Entities().GetEntityFromCache(ctx, "r1"); ok {
		t.Error("point entry survived DeleteMany")
	}
	records, _, err := cached.ListWhere(ctx, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("stale list after DeleteMany: %v", records)
	}
	if n := base.callCount("List"); n != 2 {
		t.Errorf("List calls = %d, want 2", n)
	}
}

func TestSearchIndexMirroring(t *testing.T) {
	ctx := context.Background()
	index := newMockIndex()
	syncer := searchindex.New(index, IndexName("review"))
	cached, _ := newRepo(t, WithSearchIndex(syncer, ""))

	if syncer.Index() != "reviews" {
		t.Errorf("index name = %q", syncer.Index())
	}

	if _, err := cached.Create(ctx, Review{ID: "r1", BookID: "B1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.Create(ctx, Review{ID: "r2", BookID: "B1"}); err != nil {
		t.Fatal(err)
	}
	if !index.has("r1") || !index.has("r2") {
		t.Fatal("created records not indexed")
	}

	if _, err := cached.Update(ctx, Review{ID: "r2", BookID: "B1", IsActive: inactive()}); err != nil {
		t.Fatal(err)
	}
	if index.has("r2") {
		t.Error("soft deleted record still indexed")
	}

	if err := cached.Delete(ctx, Review{ID: "r1"}); err != nil {
		t.Fatal(err)
	}
	if index.has("r1") {
		t.Error("deleted record still indexed")
	}

	page, err := cached.Search(ctx, searchindex.PageRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalRowCount != 0 {
		t.Errorf("Search total = %d", page.TotalRowCount)
	}
}

func TestSearch_WithoutIndex(t *testing.T) {
	cached, _ := newRepo(t)
	page, err := cached.Search(context.Background(), searchindex.PageRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 0 {
		t.Errorf("Search without index = %v", page)
	}
}

func TestPassThroughReads(t *testing.T) {
	ctx := context.Background()
	cached, base := newRepo(t)
	base.put(Review{ID: "r1"})

	for i := 0; i < 2; i++ {
		if _, _, err := cached.List(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := cached.Count(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := cached.Get(ctx); err != nil {
			t.Fatal(err)
		}
	}
	for _, method := range []string{"List", "Count", "Get"} {
		if n := base.callCount(method); n != 2 {
			t.Errorf("%s calls = %d, want 2", method, n)
		}
	}
}

func TestEntityName(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"struct", EntityName[Review](), "review"},
		{"pointer", EntityName[*Review](), "review"},
		{"camel case", EntityName[BookReview](), "book_review"},
		{"map", EntityName[map[string]any](), "map"},
		{"resolved default", ResolveEntityName[Review](WithClusterSpec("book_id")), "review"},
		{"resolved override", ResolveEntityName[Review](WithEntityName("rating")), "rating"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("EntityName = %q, want %q", tt.got, tt.want)
			}
		})
	}

	if got := IndexName("book_review"); got != "book_reviews" {
		t.Errorf("IndexName = %q", got)
	}
}

type BookReview struct{}

func TestPageCriteria(t *testing.T) {
	base := newMockRepository(t)
	base.render(pageCriteria(map[string]any{"limit": float64(5), "offset": "10", "order": []any{"id ASC"}}))

	for _, want := range []string{"LIMIT 5", "OFFSET 10", `ORDER BY "id" ASC`} {
		if !strings.Contains(base.lastSQL, want) {
			t.Errorf("SQL %q does not contain %q", base.lastSQL, want)
		}
	}

	if got := pageCriteria(nil); len(got) != 0 {
		t.Errorf("pageCriteria(nil) = %d criteria", len(got))
	}

	extra := map[string]any{"limit": 1}
	where := map[string]any{"book_id": "B1"}
	tagged := queryParams("list", where, extra)
	if tagged["op"] != "list" || len(extra) != 1 {
		t.Errorf("queryParams = %v, source %v", tagged, extra)
	}
	if got, ok := tagged["where"].(map[string]any); !ok || got["book_id"] != "B1" {
		t.Errorf("queryParams where = %v", tagged["where"])
	}
	if _, ok := queryParams("count", nil, nil)["where"]; ok {
		t.Error("empty filter should not be part of the params")
	}
}

func TestRepositoryInterfaceSatisfaction(t *testing.T) {
	var _ repository.Repository[Review] = (*CachedRepository[Review])(nil)
}
