package recipe

import (
	"context"
	"math"
	"testing"

	"recipehub/internal/database"
	"recipehub/internal/database/dbtest"
	"recipehub/internal/paging"
)

func ptr[T any](v T) *T { return &v }

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestList_PizzaScenario(t *testing.T) {
	f := newFixture(t)
	a := dbtest.CreateUser(t, f.db, "Alice")
	b := dbtest.CreateUser(t, f.db, "Bob")
	c := dbtest.CreateUser(t, f.db, "Carol")
	ctx := context.Background()

	pizza, err := f.store.Create(ctx, Input{
		Title: "Pizza", Ingredients: []string{"dough"}, Steps: []string{"bake"}, PreparationTime: 30, AuthorID: a.ID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.ratings.Rate(ctx, pizza.ID, b.ID, 5); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if _, err := f.ratings.Rate(ctx, pizza.ID, c.ID, 3); err != nil {
		t.Fatalf("Rate: %v", err)
	}

	page, err := f.store.List(ctx, Query{MinRating: ptr(4.0)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != pizza.ID {
		t.Fatalf("expected pizza with minRating=4, got %v", ids(page.Items))
	}
	item := page.Items[0]
	if item.AverageRating != 4.0 || item.RatingCount != 2 || item.Author.Name != "Alice" {
		t.Fatalf("unexpected item %+v", item)
	}

	page, err = f.store.List(ctx, Query{MinRating: ptr(4.5)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 0 || page.Meta.Total != 0 || page.Meta.Pages != 0 {
		t.Fatalf("expected empty page with minRating=4.5, got %+v", page)
	}
}

func TestList_PaginationCoversEachRecipeOnce(t *testing.T) {
	f := newFixture(t)
	author := dbtest.CreateUser(t, f.db, "Alice")
	seeded := seedRecipes(t, f.db, author.ID, 23)
	ctx := context.Background()

	for _, sortBy := range []string{"createdAt", "title", "rating", "preparationTime"} {
		seen := map[string]int{}
		q := Query{Limit: 5, SortBy: sortBy, SortOrder: "asc"}
		first, err := f.store.List(ctx, q)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if first.Meta.Total != 23 || first.Meta.Pages != 5 {
			t.Fatalf("unexpected meta %+v", first.Meta)
		}
		for p := 1; p <= first.Meta.Pages; p++ {
			q.Page = p
			page, err := f.store.List(ctx, q)
			if err != nil {
				t.Fatalf("List page %d: %v", p, err)
			}
			for _, id := range ids(page.Items) {
				seen[id]++
			}
		}
		if len(seen) != len(seeded) {
			t.Fatalf("sort %s: saw %d distinct recipes, want %d", sortBy, len(seen), len(seeded))
		}
		for id, n := range seen {
			if n != 1 {
				t.Fatalf("sort %s: recipe %s appeared %d times", sortBy, id, n)
			}
		}
	}
}

func TestList_Idempotent(t *testing.T) {
	f := newFixture(t)
	author := dbtest.CreateUser(t, f.db, "Alice")
	seedRecipes(t, f.db, author.ID, 8)
	ctx := context.Background()

	q := Query{Page: 2, Limit: 3, SortBy: "rating"}
	first, err := f.store.List(ctx, q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	second, err := f.store.List(ctx, q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	a, b := ids(first.Items), ids(second.Items)
	if len(a) != 3 || len(a) != len(b) {
		t.Fatalf("unexpected page sizes %d/%d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("listing is not deterministic: %v vs %v", a, b)
		}
	}
}

func TestList_MinRatingPagesAreFullUntilLast(t *testing.T) {
	f := newFixture(t)
	author := dbtest.CreateUser(t, f.db, "Alice")
	rater := dbtest.CreateUser(t, f.db, "Rater")
	recipes := seedRecipes(t, f.db, author.ID, 20)
	for i, r := range recipes {
		// 交替高低分，使高分菜谱分散在各页。
		value := 2.0
		if i%2 == 0 {
			value = 5
		}
		dbtest.Rate(t, f.db, r.ID, rater.ID, value)
	}
	ctx := context.Background()

	q := Query{MinRating: ptr(4.0), Limit: 3}
	first, err := f.store.List(ctx, q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if first.Meta.Total != 10 || first.Meta.Pages != 4 {
		t.Fatalf("unexpected meta %+v", first.Meta)
	}
	count := 0
	for p := 1; p <= first.Meta.Pages; p++ {
		q.Page = p
		page, err := f.store.List(ctx, q)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if p < first.Meta.Pages && len(page.Items) != 3 {
			t.Fatalf("page %d has %d items, want 3", p, len(page.Items))
		}
		for _, item := range page.Items {
			if item.AverageRating < 4 {
				t.Fatalf("item %s below threshold: %v", item.ID, item.AverageRating)
			}
		}
		count += len(page.Items)
	}
	if count != 10 {
		t.Fatalf("expected 10 items across pages, got %d", count)
	}
}

func TestList_ExcludesUnpublished(t *testing.T) {
	f := newFixture(t)
	author := dbtest.CreateUser(t, f.db, "Alice")
	visible := dbtest.CreateRecipe(t, f.db, author.ID, "Visible", 10)
	hidden := dbtest.CreateRecipe(t, f.db, author.ID, "Hidden", 10)
	if err := f.db.Model(&database.Recipe{}).Where("id = ?", hidden.ID).Update("is_published", false).Error; err != nil {
		t.Fatalf("unpublish: %v", err)
	}

	page, err := f.store.List(context.Background(), Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := ids(page.Items); len(got) != 1 || got[0] != visible.ID {
		t.Fatalf("expected only the published recipe, got %v", got)
	}
}

func TestList_Search(t *testing.T) {
	f := newFixture(t)
	alice := dbtest.CreateUser(t, f.db, "Alice Baker")
	bob := dbtest.CreateUser(t, f.db, "Bob")
	ctx := context.Background()

	lasagna, err := f.store.Create(ctx, Input{
		Title: "Lasagna", Ingredients: []string{"Ricotta", "pasta"}, Steps: []string{"layer"}, PreparationTime: 90, AuthorID: bob.ID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tart := dbtest.CreateRecipe(t, f.db, alice.ID, "Apple Tart", 50)
	discount := dbtest.CreateRecipe(t, f.db, bob.ID, "100% Rye", 200)
	stew, err := f.store.Create(ctx, Input{
		Title: "Stew", Ingredients: []string{"salt & pepper", `9" pan`}, Steps: []string{"simmer"}, PreparationTime: 60, AuthorID: bob.ID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.store.Create(ctx, Input{
		Title: "Soup", Ingredients: []string{"water", "leek"}, Steps: []string{"boil"}, PreparationTime: 40, AuthorID: bob.ID,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cases := map[string][]string{
		`"`:             {stew.ID},
		`","`:           {},
		"[":             {},
		"salt & pepper": {stew.ID},
		`9" pan`:        {stew.ID},
		"lasAGNA":       {lasagna.ID},
		"ricotta":       {lasagna.ID},
		"baker":         {tart.ID},
		"alice.b":       {tart.ID},
		"100%":          {discount.ID},
		"%":             {discount.ID},
		"_":             {},
		"nothing":       {},
	}
	for term, want := range cases {
		page, err := f.store.List(ctx, Query{Search: term})
		if err != nil {
			t.Fatalf("List(%q): %v", term, err)
		}
		got := ids(page.Items)
		if len(got) != len(want) {
			t.Fatalf("search %q: got %v, want %v", term, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("search %q: got %v, want %v", term, got, want)
			}
		}
	}
}

func TestList_FiltersAndSorting(t *testing.T) {
	f := newFixture(t)
	alice := dbtest.CreateUser(t, f.db, "Alice")
	bob := dbtest.CreateUser(t, f.db, "Bob")
	quick := dbtest.CreateRecipe(t, f.db, alice.ID, "Quick", 30)
	medium := dbtest.CreateRecipe(t, f.db, alice.ID, "Medium", 60)
	long := dbtest.CreateRecipe(t, f.db, bob.ID, "Long", 120)
	feast := dbtest.CreateRecipe(t, f.db, bob.ID, "Feast", 121)
	ctx := context.Background()

	buckets := map[string][]string{
		"0-30":   {quick.ID},
		"30-60":  {medium.ID},
		"60-120": {long.ID},
		"120+":   {feast.ID},
	}
	for bucket, want := range buckets {
		page, err := f.store.List(ctx, Query{PreparationTime: bucket})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if got := ids(page.Items); len(got) != 1 || got[0] != want[0] {
			t.Fatalf("bucket %s: got %v, want %v", bucket, got, want)
		}
	}

	page, _ := f.store.List(ctx, Query{PreparationTime: "forever"})
	if page.Meta.Total != 4 {
		t.Fatalf("unknown bucket should be ignored, got total %d", page.Meta.Total)
	}

	page, _ = f.store.List(ctx, Query{AuthorID: bob.ID, SortBy: "preparationTime", SortOrder: "desc"})
	if got := ids(page.Items); len(got) != 2 || got[0] != feast.ID || got[1] != long.ID {
		t.Fatalf("author filter with prep sort: got %v", got)
	}

	page, _ = f.store.List(ctx, Query{SortBy: "title", SortOrder: "ASC"})
	if got := ids(page.Items); got[0] != feast.ID || got[3] != quick.ID {
		t.Fatalf("title asc: got %v", got)
	}

	// 未知排序字段与方向回落到 createdAt desc。
	page, _ = f.store.List(ctx, Query{SortBy: "bogus", SortOrder: "sideways"})
	if got := ids(page.Items); got[0] != feast.ID || got[3] != quick.ID {
		t.Fatalf("fallback sort: got %v", got)
	}

	dbtest.Rate(t, f.db, medium.ID, bob.ID, 5)
	dbtest.Rate(t, f.db, long.ID, alice.ID, 3)
	page, _ = f.store.List(ctx, Query{SortBy: "averageRating"})
	if got := ids(page.Items); got[0] != medium.ID || got[1] != long.ID {
		t.Fatalf("rating desc: got %v", got)
	}
	// 同为 0 分时按创建时间升序。
	if got := ids(page.Items); got[2] != quick.ID || got[3] != feast.ID {
		t.Fatalf("rating tie-break: got %v", got)
	}
}

func TestList_PageAndLimitCoercion(t *testing.T) {
	f := newFixture(t)
	author := dbtest.CreateUser(t, f.db, "Alice")
	seedRecipes(t, f.db, author.ID, 12)
	ctx := context.Background()

	page, err := f.store.List(ctx, Query{Page: -3, Limit: 0})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Meta.Page != 1 || page.Meta.Limit != 10 || len(page.Items) != 10 || page.Meta.Pages != 2 {
		t.Fatalf("unexpected coerced page %+v (%d items)", page.Meta, len(page.Items))
	}

	page, _ = f.store.List(ctx, Query{Limit: 1000})
	if page.Meta.Limit != 100 || len(page.Items) != 12 {
		t.Fatalf("limit should be capped, got %+v", page.Meta)
	}

	page, _ = f.store.List(ctx, Query{Page: 9})
	if len(page.Items) != 0 || page.Meta.Total != 12 {
		t.Fatalf("page past the end should be empty, got %+v", page.Meta)
	}

	page, err = f.store.List(ctx, Query{Page: math.MaxInt64 / 10, Limit: 100})
	if err != nil {
		t.Fatalf("List huge page: %v", err)
	}
	if len(page.Items) != 0 || page.Meta.Page != paging.MaxPage {
		t.Fatalf("huge page should clamp and be empty, got %+v (%d items)", page.Meta, len(page.Items))
	}
}

func TestList_Empty(t *testing.T) {
	f := newFixture(t)
	page, err := f.store.List(context.Background(), Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 || page.Meta.Total != 0 || page.Meta.Pages != 0 {
		t.Fatalf("unexpected empty page %+v", page)
	}
}
