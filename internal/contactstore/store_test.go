package contactstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/contacts/internal/apperr"
	"github.com/starford/contacts/internal/models"
	"github.com/starford/contacts/internal/storage"
)

// flakyProvider wraps a Memory provider and fails Save while fail is set.
type flakyProvider struct {
	*storage.Memory
	mu   sync.Mutex
	fail bool
}

func (p *flakyProvider) setFail(v bool) {
	p.mu.Lock()
	p.fail = v
	p.mu.Unlock()
}

func (p *flakyProvider) Save(ctx context.Context, contacts []models.Contact) error {
	p.mu.Lock()
	fail := p.fail
	p.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return p.Memory.Save(ctx, contacts)
}

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(context.Background(), storage.NewMemory(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// sequentialIDs returns an id generator producing c1, c2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}
}

// tickingClock returns a clock advancing one second per call.
func tickingClock() func() time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func mustCreate(t *testing.T, s *Store, p models.ContactPatch) models.Contact {
	t.Helper()
	c, err := s.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c
}

func names(cs []models.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.DisplayName()
	}
	return out
}

func TestScenario_CreateSearchFavoriteDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c := mustCreate(t, s, models.ContactPatch{First: models.String("Ada")})
	if c.ID == "" {
		t.Fatal("expected generated id")
	}
	if c.Favorite {
		t.Error("favorite should default to false")
	}
	if models.Value(c.First) != "Ada" {
		t.Errorf("first = %q", models.Value(c.First))
	}

	found, err := s.List(ctx, "ada")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(found) != 1 || found[0].ID != c.ID {
		t.Fatalf("List(ada) = %v, want [%s]", names(found), c.ID)
	}

	if _, err := s.SetFavorite(ctx, c.ID, true); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}
	got, ok := s.Get(ctx, c.ID)
	if !ok || !got.Favorite {
		t.Errorf("favorite after SetFavorite = %v (found=%v)", got.Favorite, ok)
	}

	if err := s.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get(ctx, c.ID); ok {
		t.Error("contact still present after delete")
	}
}

func TestGetAfterCreateEqualsCreated(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	patches := []models.ContactPatch{
		{},
		{First: models.String("Grace"), Last: models.String("Hopper")},
		{Avatar: models.String("https://example.com/a.png"), Twitter: models.String("@x"), Notes: models.String("n")},
		{Favorite: models.Bool(true)},
	}
	for _, p := range patches {
		created := mustCreate(t, s, p)
		got, ok := s.Get(ctx, created.ID)
		if !ok {
			t.Fatalf("Get(%s) not found", created.ID)
		}
		if diff := cmp.Diff(created, got); diff != "" {
			t.Errorf("Get after Create mismatch (-created +got):\n%s", diff)
		}
	}
}

func TestCreateEmptyContactIsValid(t *testing.T) {
	s := newStore(t)
	c := mustCreate(t, s, models.ContactPatch{})
	if c.First != nil || c.Last != nil || c.Avatar != nil || c.Twitter != nil || c.Notes != nil {
		t.Errorf("empty create should leave fields absent: %+v", c)
	}
	if c.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
	if c.DisplayName() != "No Name" {
		t.Errorf("DisplayName = %q", c.DisplayName())
	}
}

func TestCreateGeneratesUniqueIDs(t *testing.T) {
	s := newStore(t)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		c := mustCreate(t, s, models.ContactPatch{})
		if seen[c.ID] {
			t.Fatalf("duplicate id %s", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestCreateRetriesOnIDCollision(t *testing.T) {
	ids := []string{"same", "same", "other"}
	i := 0
	s := newStore(t, WithIDGenerator(func() string {
		id := ids[i]
		i++
		return id
	}))
	a := mustCreate(t, s, models.ContactPatch{})
	b := mustCreate(t, s, models.ContactPatch{})
	if a.ID != "same" || b.ID != "other" {
		t.Errorf("ids = %s, %s; want same, other", a.ID, b.ID)
	}
}

func TestUpdateFavoriteLeavesOtherFields(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	before := mustCreate(t, s, models.ContactPatch{
		First:   models.String("Alan"),
		Last:    models.String("Turing"),
		Twitter: models.String("@alan"),
	})

	if _, err := s.Update(ctx, before.ID, models.ContactPatch{Favorite: models.Bool(true)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	after, _ := s.Get(ctx, before.ID)

	want := before
	want.Favorite = true
	if diff := cmp.Diff(want, after); diff != "" {
		t.Errorf("unexpected change (-want +got):\n%s", diff)
	}
}

func TestUpdateMergesPresentFieldsOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := mustCreate(t, s, models.ContactPatch{First: models.String("Ada"), Notes: models.String("old")})

	got, err := s.Update(ctx, c.ID, models.ContactPatch{Notes: models.String(""), Last: models.String("Lovelace")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if models.Value(got.First) != "Ada" {
		t.Errorf("first changed to %q", models.Value(got.First))
	}
	if got.Notes == nil || *got.Notes != "" {
		t.Errorf("notes = %v, want present empty string", got.Notes)
	}
	if models.Value(got.Last) != "Lovelace" {
		t.Errorf("last = %q", models.Value(got.Last))
	}
	if got.ID != c.ID || !got.CreatedAt.Equal(c.CreatedAt) {
		t.Error("id and created_at must not change")
	}
}

func TestNotFoundLeavesCollectionUnchanged(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	mustCreate(t, s, models.ContactPatch{First: models.String("Ada")})
	before, _ := s.List(ctx, "")

	if _, err := s.Update(ctx, "missing", models.ContactPatch{First: models.String("x")}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Update err = %v, want ErrNotFound", err)
	}
	if _, err := s.SetFavorite(ctx, "missing", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("SetFavorite err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete err = %v, want ErrNotFound", err)
	}

	after, _ := s.List(ctx, "")
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("collection changed (-before +after):\n%s", diff)
	}
}

func TestDeleteTwiceIsNotFound(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := mustCreate(t, s, models.ContactPatch{})

	if err := s.Delete(ctx, c.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.Delete(ctx, c.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListMatchesFirstOrLastCaseInsensitive(t *testing.T) {
	s := newStore(t, WithClock(tickingClock()))
	ctx := context.Background()
	mustCreate(t, s, models.ContactPatch{First: models.String("Ada"), Last: models.String("Lovelace")})
	mustCreate(t, s, models.ContactPatch{First: models.String("Grace"), Last: models.String("Hopper")})
	mustCreate(t, s, models.ContactPatch{First: models.String("Adam"), Last: models.String("Smith")})
	mustCreate(t, s, models.ContactPatch{Notes: models.String("ada in notes does not count")})

	tests := []struct {
		query string
		want  []string
	}{
		{"ada", []string{"Ada Lovelace", "Adam Smith"}},
		{"ADA", []string{"Ada Lovelace", "Adam Smith"}},
		{"hop", []string{"Grace Hopper"}},
		{"ace", []string{"Grace Hopper", "Ada Lovelace"}},
		{"zzz", []string{}},
		{" ada", []string{}},
		{"ada ", []string{}},
		{"   ", []string{"No Name", "Grace Hopper", "Ada Lovelace", "Adam Smith"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.query), func(t *testing.T) {
			got, err := s.List(ctx, tt.query)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if diff := cmp.Diff(tt.want, names(got)); diff != "" {
				t.Errorf("List(%q) (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestListEmptyQueryReturnsAllSorted(t *testing.T) {
	s := newStore(t, WithClock(tickingClock()), WithIDGenerator(sequentialIDs()))
	ctx := context.Background()
	mustCreate(t, s, models.ContactPatch{First: models.String("Zed"), Last: models.String("Adams")})
	mustCreate(t, s, models.ContactPatch{First: models.String("Bea"), Last: models.String("Young")})
	mustCreate(t, s, models.ContactPatch{First: models.String("amy"), Last: models.String("adams")})
	mustCreate(t, s, models.ContactPatch{})
	mustCreate(t, s, models.ContactPatch{First: models.String("Amy"), Last: models.String("Adams")})

	for _, q := range []string{"", "   "} {
		got, err := s.List(ctx, q)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		var ids []string
		for _, c := range got {
			ids = append(ids, c.ID)
		}
		// Nameless first, then adams (amy, amy by creation, zed), then young.
		want := []string{"c4", "c3", "c5", "c1", "c2"}
		if diff := cmp.Diff(want, ids); diff != "" {
			t.Errorf("List(%q) order (-want +got):\n%s", q, diff)
		}
	}
}

func TestReturnedContactsAreCopies(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c := mustCreate(t, s, models.ContactPatch{First: models.String("Ada")})

	*c.First = "mutated"
	got, _ := s.Get(ctx, c.ID)
	*got.First = "mutated again"

	listed, _ := s.List(ctx, "")
	if models.Value(listed[0].First) != "Ada" {
		t.Errorf("stored first = %q, want Ada", models.Value(listed[0].First))
	}
}

func TestFailedSaveDoesNotCorruptCollection(t *testing.T) {
	p := &flakyProvider{Memory: storage.NewMemory()}
	s, err := New(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	c := mustCreate(t, s, models.ContactPatch{First: models.String("Ada")})
	before, _ := s.List(ctx, "")

	p.setFail(true)
	if _, err := s.Create(ctx, models.ContactPatch{}); err == nil {
		t.Error("Create should fail")
	}
	if _, err := s.Update(ctx, c.ID, models.ContactPatch{First: models.String("x")}); err == nil {
		t.Error("Update should fail")
	}
	if err := s.Delete(ctx, c.ID); err == nil || errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete err = %v, want storage error", err)
	}

	after, _ := s.List(ctx, "")
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("collection changed after failed saves (-before +after):\n%s", diff)
	}

	p.setFail(false)
	if _, err := s.Update(ctx, c.ID, models.ContactPatch{First: models.String("Ada B")}); err != nil {
		t.Errorf("Update after recovery: %v", err)
	}
}

func TestMutationsPersistImmediately(t *testing.T) {
	mem := storage.NewMemory()
	s, err := New(context.Background(), mem)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	c := mustCreate(t, s, models.ContactPatch{First: models.String("Ada")})
	_, _ = s.SetFavorite(ctx, c.ID, true)

	persisted, _ := mem.Load(ctx)
	if len(persisted) != 1 || !persisted[0].Favorite {
		t.Fatalf("persisted = %+v, want one favorite contact", persisted)
	}

	reopened, err := New(ctx, mem)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reopened.Get(ctx, c.ID)
	if !ok {
		t.Fatal("contact missing after reopen")
	}
	if diff := cmp.Diff(persisted[0], got); diff != "" {
		t.Errorf("reopened mismatch (-persisted +got):\n%s", diff)
	}
}

func TestOnChangeCallback(t *testing.T) {
	var events []string
	s := newStore(t, WithOnChange(func(kind, id string) {
		events = append(events, kind+":"+id)
	}), WithIDGenerator(sequentialIDs()))
	ctx := context.Background()

	c := mustCreate(t, s, models.ContactPatch{})
	_, _ = s.SetFavorite(ctx, c.ID, true)
	_ = s.Delete(ctx, c.ID)
	_ = s.Delete(ctx, c.ID) // not found: no event

	want := []string{"created:c1", "updated:c1", "deleted:c1"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	entries := []models.ContactPatch{
		{First: models.String("Ada")},
		{First: models.String("Grace"), Favorite: models.Bool(true)},
	}

	n, err := s.Seed(ctx, entries)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if n != 2 || s.Len() != 2 {
		t.Fatalf("seeded %d, len %d; want 2, 2", n, s.Len())
	}

	n, err = s.Seed(ctx, entries)
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if n != 0 || s.Len() != 2 {
		t.Errorf("second seed added %d contacts, len %d", n, s.Len())
	}
}

func TestLoadSkipsDuplicateIDs(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := storage.NewMemory(
		models.Contact{ID: "x", First: models.String("one"), CreatedAt: created},
		models.Contact{ID: "x", First: models.String("two"), CreatedAt: created},
		models.Contact{ID: "", First: models.String("blank"), CreatedAt: created},
	)
	s, err := New(context.Background(), mem)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	got, _ := s.Get(context.Background(), "x")
	if models.Value(got.First) != "one" {
		t.Errorf("kept %q, want first occurrence", models.Value(got.First))
	}
}

// gatedProvider snapshots the collection at the start of Load and then
// blocks until release is closed, widening the window between reading and
// applying a reload.
type gatedProvider struct {
	*storage.Memory
	mu      sync.Mutex
	entered chan struct{}
	release chan struct{}
}

func (p *gatedProvider) arm() {
	p.mu.Lock()
	p.entered = make(chan struct{})
	p.release = make(chan struct{})
	p.mu.Unlock()
}

func (p *gatedProvider) Load(ctx context.Context) ([]models.Contact, error) {
	snapshot, err := p.Memory.Load(ctx)

	p.mu.Lock()
	entered, release := p.entered, p.release
	p.entered, p.release = nil, nil
	p.mu.Unlock()

	if entered != nil {
		close(entered)
		<-release
	}
	return snapshot, err
}

func TestReloadDoesNotDropConcurrentCreate(t *testing.T) {
	p := &gatedProvider{Memory: storage.NewMemory()}
	s, err := New(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	p.arm()
	entered, release := p.entered, p.release

	reloadErr := make(chan error, 1)
	go func() { reloadErr <- s.Reload(ctx) }()
	<-entered

	type result struct {
		c   models.Contact
		err error
	}
	created := make(chan result, 1)
	go func() {
		c, err := s.Create(ctx, models.ContactPatch{First: models.String("Ada")})
		created <- result{c, err}
	}()

	// Let Create reach the store while the reload is still reading.
	time.Sleep(50 * time.Millisecond)
	close(release)

	if err := <-reloadErr; err != nil {
		t.Fatalf("Reload: %v", err)
	}
	res := <-created
	if res.err != nil {
		t.Fatalf("Create: %v", res.err)
	}

	if _, ok := s.Get(ctx, res.c.ID); !ok {
		t.Error("created contact vanished after concurrent reload")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	persisted, _ := p.Memory.Load(ctx)
	if len(persisted) != 1 {
		t.Errorf("persisted %d contacts, want 1", len(persisted))
	}
}
