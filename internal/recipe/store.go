// Package recipe owns recipe records: validated creation and edits, owner-only mutation, cascade
// deletion and the public listing engine.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recipehub/internal/database"
	"recipehub/internal/errcode"
	"recipehub/internal/metrics"
	"recipehub/internal/rating"
	"recipehub/internal/storage"
	"recipehub/internal/validation"
)

const (
	msgRecipeNotFound = "Recipe not found"
	msgUserNotFound   = "User not found"
	msgNotOwner       = "You are not allowed to modify this recipe"
)

var fieldMessages = validation.Messages{
	"Title":           "Title must be between 3 and 100 characters",
	"Ingredients":     "At least one ingredient is required",
	"Steps":           "At least one step is required",
	"PreparationTime": "Preparation time must be between 1 and 1440 minutes",
}

// ImageStore 是图片托管的删除能力，删除不存在的对象应视为成功。
type ImageStore interface {
	DeleteObject(ctx context.Context, objectKey string) error
}

// Input 描述新建菜谱的字段。Image 为已上传图片，可为空。
type Input struct {
	Title           string
	Ingredients     []string
	Steps           []string
	PreparationTime int
	AuthorID        string
	Image           *storage.Image
}

// Changes 描述部分更新；nil 字段保持不变。
type Changes struct {
	Title           *string
	Ingredients     []string
	Steps           []string
	PreparationTime *int
	IsPublished     *bool
	Image           *storage.Image
}

// Detail 是单个菜谱连同作者与评分汇总。
type Detail struct {
	Recipe  database.Recipe
	Summary rating.Summary
}

type fields struct {
	Title           string   `validate:"min=3,max=100"`
	Ingredients     []string `validate:"min=1"`
	Steps           []string `validate:"min=1"`
	PreparationTime int      `validate:"min=1,max=1440"`
}

// Store 是菜谱仓储。
type Store struct {
	db      *gorm.DB
	ratings *rating.Aggregator
	images  ImageStore
	logger  *slog.Logger
}

// NewStore 构造菜谱仓储；images 为 nil 时跳过图片释放。
func NewStore(db *gorm.DB, ratings *rating.Aggregator, images ImageStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, ratings: ratings, images: images, logger: logger}
}

// Create validates and stores a new published recipe. An uploaded image is released again when the
// recipe cannot be created.
func (s *Store) Create(ctx context.Context, in Input) (database.Recipe, error) {
	recipe, err := s.create(ctx, in)
	if err != nil && in.Image != nil {
		s.releaseImage(ctx, in.Image.PublicID, "create")
	}
	return recipe, err
}

func (s *Store) create(ctx context.Context, in Input) (database.Recipe, error) {
	f := fields{
		Title:           strings.TrimSpace(in.Title),
		Ingredients:     NormalizeTextList(in.Ingredients),
		Steps:           NormalizeTextList(in.Steps),
		PreparationTime: in.PreparationTime,
	}
	if err := validation.Struct(&f, fieldMessages); err != nil {
		return database.Recipe{}, err
	}

	db := s.db.WithContext(ctx)

	var authors int64
	if err := db.Model(&database.User{}).Where("id = ?", in.AuthorID).Count(&authors).Error; err != nil {
		return database.Recipe{}, fmt.Errorf("check author %s: %w", in.AuthorID, err)
	}
	if authors == 0 {
		return database.Recipe{}, errcode.NotFound(msgUserNotFound)
	}

	recipe := database.Recipe{
		Title:           f.Title,
		Ingredients:     f.Ingredients,
		Steps:           f.Steps,
		PreparationTime: f.PreparationTime,
		AuthorID:        in.AuthorID,
		IsPublished:     true,
	}
	if in.Image != nil {
		recipe.ImageURL = in.Image.URL
		recipe.ImagePublicID = in.Image.PublicID
	}
	if err := db.Omit(clause.Associations).Create(&recipe).Error; err != nil {
		return database.Recipe{}, fmt.Errorf("create recipe: %w", err)
	}
	return recipe, nil
}

// Get 返回菜谱详情（作者、评分汇总）。
func (s *Store) Get(ctx context.Context, id string) (Detail, error) {
	var recipe database.Recipe
	err := s.db.WithContext(ctx).
		Preload("Author", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "email", "image_url")
		}).
		First(&recipe, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Detail{}, errcode.NotFound(msgRecipeNotFound)
	}
	if err != nil {
		return Detail{}, fmt.Errorf("get recipe %s: %w", id, err)
	}

	summary, err := s.ratings.AverageFor(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Recipe: recipe, Summary: summary}, nil
}

// Update applies changes on behalf of callerID, who must own the recipe. A replaced image is
// released after the update commits; a new image that could not be applied is released instead.
func (s *Store) Update(ctx context.Context, id, callerID string, ch Changes) (database.Recipe, error) {
	recipe, previousImage, err := s.update(ctx, id, callerID, ch)
	if err != nil {
		if ch.Image != nil {
			s.releaseImage(ctx, ch.Image.PublicID, "update")
		}
		return database.Recipe{}, err
	}
	if previousImage != "" && (ch.Image == nil || previousImage != ch.Image.PublicID) {
		s.releaseImage(ctx, previousImage, "replace")
	}
	return recipe, nil
}

func (s *Store) update(ctx context.Context, id, callerID string, ch Changes) (database.Recipe, string, error) {
	recipe, err := s.loadOwned(ctx, id, callerID)
	if err != nil {
		return database.Recipe{}, "", err
	}

	f := fields{
		Title:           recipe.Title,
		Ingredients:     recipe.Ingredients,
		Steps:           recipe.Steps,
		PreparationTime: recipe.PreparationTime,
	}
	updates := map[string]any{}
	if ch.Title != nil {
		f.Title = strings.TrimSpace(*ch.Title)
		updates["title"] = f.Title
	}
	if ch.Ingredients != nil {
		f.Ingredients = NormalizeTextList(ch.Ingredients)
		updates["ingredients"] = datatypes.JSONSlice[string](f.Ingredients)
	}
	if ch.Steps != nil {
		f.Steps = NormalizeTextList(ch.Steps)
		updates["steps"] = datatypes.JSONSlice[string](f.Steps)
	}
	if ch.PreparationTime != nil {
		f.PreparationTime = *ch.PreparationTime
		updates["preparation_time"] = f.PreparationTime
	}
	if err := validation.Struct(&f, fieldMessages); err != nil {
		return database.Recipe{}, "", err
	}
	if ch.IsPublished != nil {
		updates["is_published"] = *ch.IsPublished
	}

	previousImage := ""
	if ch.Image != nil {
		updates["image_url"] = ch.Image.URL
		updates["image_public_id"] = ch.Image.PublicID
		previousImage = recipe.ImagePublicID
	}
	if len(updates) == 0 {
		return recipe, "", nil
	}

	db := s.db.WithContext(ctx)
	if err := db.Model(&database.Recipe{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return database.Recipe{}, "", fmt.Errorf("update recipe %s: %w", id, err)
	}
	var updated database.Recipe
	if err := db.First(&updated, "id = ?", id).Error; err != nil {
		return database.Recipe{}, "", fmt.Errorf("reload recipe %s: %w", id, err)
	}
	return updated, previousImage, nil
}

// Delete removes the recipe with its ratings and comments in one transaction, then releases the
// image best-effort.
func (s *Store) Delete(ctx context.Context, id, callerID string) error {
	recipe, err := s.loadOwned(ctx, id, callerID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", id).Delete(&database.Rating{}).Error; err != nil {
			return fmt.Errorf("delete ratings: %w", err)
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&database.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&database.Recipe{}).Error; err != nil {
			return fmt.Errorf("delete recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete recipe %s: %w", id, err)
	}

	s.releaseImage(ctx, recipe.ImagePublicID, "delete")
	return nil
}

func (s *Store) loadOwned(ctx context.Context, id, callerID string) (database.Recipe, error) {
	var recipe database.Recipe
	err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.Recipe{}, errcode.NotFound(msgRecipeNotFound)
	}
	if err != nil {
		return database.Recipe{}, fmt.Errorf("load recipe %s: %w", id, err)
	}
	if err := requireOwner(recipe, callerID); err != nil {
		return database.Recipe{}, err
	}
	return recipe, nil
}

func requireOwner(recipe database.Recipe, callerID string) error {
	if callerID == "" || recipe.AuthorID != callerID {
		return errcode.Authorization(msgNotOwner)
	}
	return nil
}

// releaseImage 尽力删除图片，失败只记录日志与指标。
func (s *Store) releaseImage(ctx context.Context, publicID, reason string) {
	if s.images == nil || publicID == "" {
		return
	}
	if err := s.images.DeleteObject(ctx, publicID); err != nil {
		metrics.ImageReleaseFailed(reason)
		s.logger.Warn("release recipe image failed", "public_id", publicID, "reason", reason, "error", err)
	}
}
