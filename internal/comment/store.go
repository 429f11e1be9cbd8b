// Package comment stores recipe comments and serves them newest-first in pages.
package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recipehub/internal/database"
	"recipehub/internal/errcode"
	"recipehub/internal/paging"
	"recipehub/internal/validation"
)

const (
	MaxContentLength = 500

	msgCommentNotFound = "Comment not found"
	msgRecipeNotFound  = "Recipe not found"
	msgNotOwner        = "You are not allowed to modify this comment"
	msgAlreadyComment  = "You have already commented on this recipe"
)

var contentMessages = validation.Messages{
	"Content.required": "Content is required",
}

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// ListParams 是评论分页参数。
type ListParams struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Page 是一页评论。
type Page struct {
	Items []database.Comment
	Meta  paging.Meta
}

// Store 是评论仓储。onePerRecipe 打开时每个用户对同一菜谱只能评论一次。
type Store struct {
	db           *gorm.DB
	onePerRecipe bool
	logger       *slog.Logger
}

func NewStore(db *gorm.DB, onePerRecipe bool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, onePerRecipe: onePerRecipe, logger: logger}
}

type contentField struct {
	Content string `validate:"required"`
}

// validateContent 返回去除首尾空白后的内容；长度按字符计，上限 MaxContentLength。
func validateContent(content string) (string, error) {
	f := contentField{Content: strings.TrimSpace(content)}
	if err := validation.Struct(&f, contentMessages); err != nil {
		return "", err
	}
	if utf8.RuneCountInString(f.Content) > MaxContentLength {
		return "", errcode.Validation(fmt.Sprintf("Content must be at most %d characters", MaxContentLength))
	}
	return f.Content, nil
}

// Add 为菜谱添加一条评论。
func (s *Store) Add(ctx context.Context, recipeID, authorID, content string) (database.Comment, error) {
	content, err := validateContent(content)
	if err != nil {
		return database.Comment{}, err
	}

	db := s.db.WithContext(ctx)

	var recipes int64
	if err := db.Model(&database.Recipe{}).Where("id = ?", recipeID).Count(&recipes).Error; err != nil {
		return database.Comment{}, fmt.Errorf("check recipe %s: %w", recipeID, err)
	}
	if recipes == 0 {
		return database.Comment{}, errcode.NotFound(msgRecipeNotFound)
	}

	if s.onePerRecipe {
		var existing int64
		if err := db.Model(&database.Comment{}).
			Where("recipe_id = ? AND author_id = ?", recipeID, authorID).
			Count(&existing).Error; err != nil {
			return database.Comment{}, fmt.Errorf("check existing comment: %w", err)
		}
		if existing > 0 {
			return database.Comment{}, errcode.ConflictError(msgAlreadyComment)
		}
	}

	comment := database.Comment{Content: content, AuthorID: authorID, RecipeID: recipeID}
	if err := db.Omit(clause.Associations).Create(&comment).Error; err != nil {
		return database.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return s.withAuthor(ctx, comment.ID)
}

// Update 修改评论内容，仅作者本人可操作。
func (s *Store) Update(ctx context.Context, id, callerID, content string) (database.Comment, error) {
	if _, err := s.loadOwned(ctx, id, callerID); err != nil {
		return database.Comment{}, err
	}
	content, err := validateContent(content)
	if err != nil {
		return database.Comment{}, err
	}
	if err := s.db.WithContext(ctx).Model(&database.Comment{}).Where("id = ?", id).Update("content", content).Error; err != nil {
		return database.Comment{}, fmt.Errorf("update comment %s: %w", id, err)
	}
	return s.withAuthor(ctx, id)
}

// Remove 删除评论，仅作者本人可操作。
func (s *Store) Remove(ctx context.Context, id, callerID string) error {
	if _, err := s.loadOwned(ctx, id, callerID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&database.Comment{}).Error; err != nil {
		return fmt.Errorf("delete comment %s: %w", id, err)
	}
	return nil
}

// ListForRecipe pages through a recipe's comments. An unknown recipe simply has no comments.
func (s *Store) ListForRecipe(ctx context.Context, recipeID string, p ListParams) (Page, error) {
	page, limit := paging.Normalize(p.Page, p.Limit)

	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&database.Comment{}).Where("recipe_id = ?", recipeID)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return Page{}, fmt.Errorf("count comments: %w", err)
	}
	meta := paging.NewMeta(page, limit, total)
	items := make([]database.Comment, 0, limit)
	if total == 0 {
		return Page{Items: items, Meta: meta}, nil
	}

	err := base().
		Preload("Author", selectAuthor).
		Order(s.orderBy(p.SortBy, p.SortOrder)).
		Order("id ASC").
		Limit(limit).
		Offset(paging.Offset(page, limit)).
		Find(&items).Error
	if err != nil {
		return Page{}, fmt.Errorf("list comments: %w", err)
	}
	return Page{Items: items, Meta: meta}, nil
}

// Recent 返回菜谱最新的 n 条评论，用于详情页。
func (s *Store) Recent(ctx context.Context, recipeID string, n int) ([]database.Comment, error) {
	items := make([]database.Comment, 0, n)
	if n <= 0 {
		return items, nil
	}
	err := s.db.WithContext(ctx).
		Preload("Author", selectAuthor).
		Where("recipe_id = ?", recipeID).
		Order("created_at DESC").
		Order("id ASC").
		Limit(n).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("recent comments: %w", err)
	}
	return items, nil
}

func (s *Store) orderBy(sortBy, sortOrder string) string {
	column, ok := sortColumns[sortBy]
	if !ok {
		if sortBy != "" {
			s.logger.Debug("unknown comment sort field, falling back to createdAt", "sort_by", sortBy)
		}
		column = sortColumns["createdAt"]
	}
	if strings.EqualFold(sortOrder, "asc") {
		return column + " ASC"
	}
	if sortOrder != "" && !strings.EqualFold(sortOrder, "desc") {
		s.logger.Debug("unknown comment sort order, falling back to desc", "sort_order", sortOrder)
	}
	return column + " DESC"
}

func (s *Store) loadOwned(ctx context.Context, id, callerID string) (database.Comment, error) {
	var comment database.Comment
	err := s.db.WithContext(ctx).First(&comment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.Comment{}, errcode.NotFound(msgCommentNotFound)
	}
	if err != nil {
		return database.Comment{}, fmt.Errorf("load comment %s: %w", id, err)
	}
	if err := requireOwner(comment, callerID); err != nil {
		return database.Comment{}, err
	}
	return comment, nil
}

func requireOwner(comment database.Comment, callerID string) error {
	if callerID == "" || comment.AuthorID != callerID {
		return errcode.Authorization(msgNotOwner)
	}
	return nil
}

func (s *Store) withAuthor(ctx context.Context, id string) (database.Comment, error) {
	var comment database.Comment
	if err := s.db.WithContext(ctx).Preload("Author", selectAuthor).First(&comment, "id = ?", id).Error; err != nil {
		return database.Comment{}, fmt.Errorf("reload comment %s: %w", id, err)
	}
	return comment, nil
}

func selectAuthor(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "image_url")
}
