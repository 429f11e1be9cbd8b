// Package dbtest opens throwaway SQLite databases with the production schema for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"recipehub/internal/database"
)

var seq atomic.Int64

// Open 返回一个迁移完成的内存数据库，测试结束时自动关闭。
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sqlite: %v", err)
	}
	// 单连接避免 shared cache 下的表锁冲突。
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser 直接落库一个用户，密码哈希为占位值。
func CreateUser(t *testing.T, db *gorm.DB, name string) database.User {
	t.Helper()
	user := database.User{
		Name:         name,
		Email:        strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		PasswordHash: "x",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %q: %v", name, err)
	}
	return user
}

// CreateRecipe 落库一个已发布的菜谱，配料与步骤各一条。
func CreateRecipe(t *testing.T, db *gorm.DB, authorID, title string, prepMinutes int) database.Recipe {
	t.Helper()
	recipe := database.Recipe{
		Title:           title,
		Ingredients:     []string{title + " base"},
		Steps:           []string{"cook"},
		PreparationTime: prepMinutes,
		AuthorID:        authorID,
		IsPublished:     true,
	}
	if err := db.Omit(clause.Associations).Create(&recipe).Error; err != nil {
		t.Fatalf("create recipe %q: %v", title, err)
	}
	return recipe
}

// Rate 直接落库一条评分，绕过业务校验。
func Rate(t *testing.T, db *gorm.DB, recipeID, authorID string, value float64) {
	t.Helper()
	rating := database.Rating{RecipeID: recipeID, AuthorID: authorID, Value: value}
	if err := db.Omit(clause.Associations).Create(&rating).Error; err != nil {
		t.Fatalf("rate recipe %s: %v", recipeID, err)
	}
}
