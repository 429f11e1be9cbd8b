package recipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"gorm.io/gorm"

	"recipehub/internal/database"
	"recipehub/internal/database/dbtest"
	"recipehub/internal/errcode"
	"recipehub/internal/rating"
	"recipehub/internal/storage"
)

type fakeImages struct {
	deleted []string
	err     error
}

func (f *fakeImages) DeleteObject(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.err
}

type fixture struct {
	db      *gorm.DB
	store   *Store
	ratings *rating.Aggregator
	images  *fakeImages
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ratings := rating.NewAggregator(db, rating.ScaleInteger, logger)
	images := &fakeImages{}
	return fixture{db: db, store: NewStore(db, ratings, images, logger), ratings: ratings, images: images}
}

func validInput(authorID string) Input {
	return Input{
		Title:           "  Pizza  ",
		Ingredients:     []string{"flour\n tomato \n\n", "cheese"},
		Steps:           []string{"bake"},
		PreparationTime: 30,
		AuthorID:        authorID,
	}
}

func TestCreate_NormalizesAndPublishes(t *testing.T) {
	f := newFixture(t)
	author := dbtest.CreateUser(t, f.db, "Alice")

	got, err := f.store.Create(context.Background(), validInput(author.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID == "" || got.Title != "Pizza" || !got.IsPublished {
		t.Fatalf("unexpected recipe %+v", got)
	}
	if want := []string{"flour", "tomato", "cheese"}; !reflect.DeepEqual([]string(got.Ingredients), want) {
		t.Fatalf("ingredients = %v, want %v", got.Ingredients, want)
	}

	detail, err := f.store.Get(context.Background(), got.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.Recipe.Author.Name != "Alice" || detail.Summary != (rating.Summary{}) {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if !reflect.DeepEqual([]string(detail.Recipe.Steps), []string{"bake"}) {
		t.Fatalf("steps round trip = %v", detail.Recipe.Steps)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	author := dbtest.CreateUser(t, f.db, "Alice")
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Input)
		msg    string
	}{
		{"short title", func(in *Input) { in.Title = " ab " }, "Title must be between 3 and 100 characters"},
		{"long title", func(in *Input) { in.Title = string(make([]rune, 101)) }, "Title must be between 3 and 100 characters"},
		{"no ingredients", func(in *Input) { in.Ingredients = []string{" \n "} }, "At least one ingredient is required"},
		{"no steps", func(in *Input) { in.Steps = nil }, "At least one step is required"},
		{"zero prep", func(in *Input) { in.PreparationTime = 0 }, "Preparation time must be between 1 and 1440 minutes"},
		{"long prep", func(in *Input) { in.PreparationTime = 1441 }, "Preparation time must be between 1 and 1440 minutes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput(author.ID)
			tc.mutate(&in)
			_, err := f.store.Create(ctx, in)
			if !errors.Is(err, errcode.ErrValidation) || err.Error() != tc.msg {
				t.Fatalf("expected validation %q, got %v", tc.msg, err)
			}
		})
	}

	in := validInput("missing")
	in.Image = &storage.Image{URL: "http://img/x.png", PublicID: "recipes/x.png"}
	if _, err := f.store.Create(ctx, in); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected not found for unknown author, got %v", err)
	}
	if !reflect.DeepEqual(f.images.deleted, []string{"recipes/x.png"}) {
		t.Fatalf("uploaded image should be released on failure, got %v", f.images.deleted)
	}
}

func TestGet_Missing(t *testing.T) {
	f := newFixture(t)
	if _, err := f.store.Get(context.Background(), "nope"); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdate_OwnershipIsSymmetric(t *testing.T) {
	f := newFixture(t)
	alice := dbtest.CreateUser(t, f.db, "Alice")
	bob := dbtest.CreateUser(t, f.db, "Bob")
	ctx := context.Background()
	recipe := dbtest.CreateRecipe(t, f.db, alice.ID, "Soup", 20)

	title := "Bob's soup"
	if _, err := f.store.Update(ctx, recipe.ID, bob.ID, Changes{Title: &title}); !errors.Is(err, errcode.ErrForbidden) {
		t.Fatalf("update by non-owner: expected forbidden, got %v", err)
	}
	if err := f.store.Delete(ctx, recipe.ID, bob.ID); !errors.Is(err, errcode.ErrForbidden) {
		t.Fatalf("delete by non-owner: expected forbidden, got %v", err)
	}
	if _, err := f.store.Update(ctx, "missing", bob.ID, Changes{Title: &title}); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("update of missing recipe: expected not found, got %v", err)
	}
	if err := f.store.Delete(ctx, "missing", alice.ID); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("delete of missing recipe: expected not found, got %v", err)
	}

	detail, err := f.store.Get(ctx, recipe.ID)
	if err != nil || detail.Recipe.Title != "Soup" {
		t.Fatalf("recipe must be unchanged, got %+v err=%v", detail.Recipe, err)
	}
}

func TestUpdate_ChangesAndReplacesImage(t *testing.T) {
	f := newFixture(t)
	alice := dbtest.CreateUser(t, f.db, "Alice")
	ctx := context.Background()

	in := validInput(alice.ID)
	in.Image = &storage.Image{URL: "http://img/old.png", PublicID: "recipes/old.png"}
	created, err := f.store.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	prep := 45
	unpublished := false
	updated, err := f.store.Update(ctx, created.ID, alice.ID, Changes{
		PreparationTime: &prep,
		Steps:           []string{"knead\nbake"},
		IsPublished:     &unpublished,
		Image:           &storage.Image{URL: "http://img/new.png", PublicID: "recipes/new.png"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.PreparationTime != 45 || updated.IsPublished || updated.ImagePublicID != "recipes/new.png" {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if updated.Title != "Pizza" || !reflect.DeepEqual([]string(updated.Steps), []string{"knead", "bake"}) {
		t.Fatalf("unexpected fields %+v", updated)
	}
	if !reflect.DeepEqual(f.images.deleted, []string{"recipes/old.png"}) {
		t.Fatalf("previous image should be released, got %v", f.images.deleted)
	}

	bad := 0
	if _, err := f.store.Update(ctx, created.ID, alice.ID, Changes{PreparationTime: &bad}); !errors.Is(err, errcode.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDelete_CascadesAndReleasesImage(t *testing.T) {
	f := newFixture(t)
	alice := dbtest.CreateUser(t, f.db, "Alice")
	bob := dbtest.CreateUser(t, f.db, "Bob")
	ctx := context.Background()

	in := validInput(alice.ID)
	in.Image = &storage.Image{URL: "http://img/p.png", PublicID: "recipes/p.png"}
	recipe, err := f.store.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	other := dbtest.CreateRecipe(t, f.db, alice.ID, "Other", 10)
	dbtest.Rate(t, f.db, recipe.ID, bob.ID, 4)
	dbtest.Rate(t, f.db, other.ID, bob.ID, 2)
	for _, id := range []string{recipe.ID, other.ID} {
		if err := f.db.Omit("Author", "Recipe").Create(&database.Comment{RecipeID: id, AuthorID: bob.ID, Content: "nice"}).Error; err != nil {
			t.Fatalf("create comment: %v", err)
		}
	}

	// 图片释放失败不影响删除结果。
	f.images.err = errors.New("storage down")
	if err := f.store.Delete(ctx, recipe.ID, alice.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !reflect.DeepEqual(f.images.deleted, []string{"recipes/p.png"}) {
		t.Fatalf("expected image release attempt, got %v", f.images.deleted)
	}

	if _, err := f.store.Get(ctx, recipe.ID); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected recipe gone, got %v", err)
	}
	summary, err := f.ratings.AverageFor(ctx, recipe.ID)
	if err != nil || summary != (rating.Summary{}) {
		t.Fatalf("expected zero summary after delete, got %+v err=%v", summary, err)
	}
	var comments int64
	f.db.Model(&database.Comment{}).Where("recipe_id = ?", recipe.ID).Count(&comments)
	if comments != 0 {
		t.Fatalf("expected comments removed, got %d", comments)
	}

	var remaining int64
	f.db.Model(&database.Comment{}).Where("recipe_id = ?", other.ID).Count(&remaining)
	if remaining != 1 {
		t.Fatalf("other recipe's comments must survive, got %d", remaining)
	}
	if s, _ := f.ratings.AverageFor(ctx, other.ID); s.Count != 1 {
		t.Fatalf("other recipe's ratings must survive, got %+v", s)
	}
}

func TestNormalizeTextList(t *testing.T) {
	got := NormalizeTextList([]string{" a \n b", "", "\n\nc\n"})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got := NormalizeTextList(nil); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func seedRecipes(t *testing.T, db *gorm.DB, authorID string, n int) []database.Recipe {
	t.Helper()
	out := make([]database.Recipe, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, dbtest.CreateRecipe(t, db, authorID, fmt.Sprintf("Recipe %02d", i), 10+i*7))
	}
	return out
}
