package database_test

import (
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recipehub/internal/database"
	"recipehub/internal/database/dbtest"
)

func TestMigrate_Idempotent(t *testing.T) {
	db := dbtest.Open(t)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	for _, table := range []string{"users", "recipes", "ratings", "comments"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
}

func TestModels_AssignIDsAndEnforceUniqueness(t *testing.T) {
	db := dbtest.Open(t)
	author := dbtest.CreateUser(t, db, "Ada Cook")
	if len(author.ID) != 36 {
		t.Fatalf("expected uuid id, got %q", author.ID)
	}

	dup := database.User{Name: "Other", Email: author.Email, PasswordHash: "x"}
	if err := db.Create(&dup).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key for email, got %v", err)
	}

	recipe := dbtest.CreateRecipe(t, db, author.ID, "Soup", 20)
	dbtest.Rate(t, db, recipe.ID, author.ID, 4)
	again := database.Rating{RecipeID: recipe.ID, AuthorID: author.ID, Value: 5}
	if err := db.Omit(clause.Associations).Create(&again).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key for (author, recipe), got %v", err)
	}

	var stored database.Recipe
	if err := db.First(&stored, "id = ?", recipe.ID).Error; err != nil {
		t.Fatalf("load recipe: %v", err)
	}
	if len(stored.Ingredients) != 1 || stored.Ingredients[0] != "Soup base" {
		t.Fatalf("ingredients did not round-trip: %v", stored.Ingredients)
	}
	if stored.CreatedAt.IsZero() || time.Since(stored.CreatedAt) > time.Minute {
		t.Fatalf("unexpected created_at %v", stored.CreatedAt)
	}
}
