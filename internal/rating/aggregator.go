// Package rating stores one rating per (author, recipe) pair and derives the rounded average and
// count that the listing engine filters and sorts on.
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recipehub/internal/database"
	"recipehub/internal/errcode"
)

// Scale 描述评分取值策略。
type Scale string

const (
	// ScaleInteger 只接受 1..5 的整数。
	ScaleInteger Scale = "integer"
	// ScaleHalf 接受 0.5..5，并取整到最近的 0.5。
	ScaleHalf Scale = "half"
)

const (
	msgRecipeNotFound = "Recipe not found"
	msgAlreadyRated   = "User has already rated this recipe"
)

// Summary 是某个菜谱的评分汇总；没有评分时为 {0, 0}。
type Summary struct {
	Average float64 `json:"averageRating"`
	Count   int64   `json:"ratingCount"`
}

// Aggregator 负责写入评分与计算汇总。
type Aggregator struct {
	db     *gorm.DB
	scale  Scale
	logger *slog.Logger
}

// NewAggregator 构造评分聚合器；未知策略按整数评分处理。
func NewAggregator(db *gorm.DB, scale Scale, logger *slog.Logger) *Aggregator {
	if scale != ScaleHalf {
		scale = ScaleInteger
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{db: db, scale: scale, logger: logger}
}

// Rate records authorID's rating of recipeID. A second rating by the same author is a conflict;
// the composite unique index decides when two requests race past the pre-check.
func (a *Aggregator) Rate(ctx context.Context, recipeID, authorID string, value float64) (database.Rating, error) {
	normalized, err := a.normalize(value)
	if err != nil {
		return database.Rating{}, err
	}

	db := a.db.WithContext(ctx)

	var recipes int64
	if err := db.Model(&database.Recipe{}).Where("id = ?", recipeID).Count(&recipes).Error; err != nil {
		return database.Rating{}, fmt.Errorf("check recipe %s: %w", recipeID, err)
	}
	if recipes == 0 {
		return database.Rating{}, errcode.NotFound(msgRecipeNotFound)
	}

	var existing int64
	if err := db.Model(&database.Rating{}).
		Where("author_id = ? AND recipe_id = ?", authorID, recipeID).
		Count(&existing).Error; err != nil {
		return database.Rating{}, fmt.Errorf("check existing rating: %w", err)
	}
	if existing > 0 {
		return database.Rating{}, errcode.ConflictError(msgAlreadyRated)
	}

	rating := database.Rating{Value: normalized, AuthorID: authorID, RecipeID: recipeID}
	if err := a.insert(ctx, &rating); err != nil {
		return database.Rating{}, err
	}
	return rating, nil
}

func (a *Aggregator) insert(ctx context.Context, rating *database.Rating) error {
	err := a.db.WithContext(ctx).Omit(clause.Associations).Create(rating).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errcode.ConflictError(msgAlreadyRated)
	}
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func (a *Aggregator) normalize(value float64) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, a.rangeError()
	}
	switch a.scale {
	case ScaleHalf:
		rounded := math.Round(value*2) / 2
		if rounded < 0.5 || rounded > 5 {
			return 0, a.rangeError()
		}
		if rounded != value {
			a.logger.Debug("rating value rounded to half step", "value", value, "rounded", rounded)
		}
		return rounded, nil
	default:
		if value != math.Trunc(value) || value < 1 || value > 5 {
			return 0, a.rangeError()
		}
		return value, nil
	}
}

func (a *Aggregator) rangeError() error {
	if a.scale == ScaleHalf {
		return errcode.Validation("Rating value must be between 0.5 and 5")
	}
	return errcode.Validation("Rating value must be between 1 and 5")
}

// AverageFor 返回单个菜谱的评分汇总。
func (a *Aggregator) AverageFor(ctx context.Context, recipeID string) (Summary, error) {
	summaries, err := a.SummariesFor(ctx, []string{recipeID})
	if err != nil {
		return Summary{}, err
	}
	return summaries[recipeID], nil
}

// SummariesFor 用一次分组查询返回一批菜谱的评分汇总；没有评分的菜谱不出现在结果中，取零值即可。
func (a *Aggregator) SummariesFor(ctx context.Context, recipeIDs []string) (map[string]Summary, error) {
	out := make(map[string]Summary, len(recipeIDs))
	if len(recipeIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		RecipeID      string
		AverageRating float64
		RatingCount   int64
	}
	if err := Subquery(a.db.WithContext(ctx)).Where("recipe_id IN ?", recipeIDs).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregate ratings: %w", err)
	}
	for _, row := range rows {
		out[row.RecipeID] = Summary{Average: row.AverageRating, Count: row.RatingCount}
	}
	return out, nil
}

// Subquery 返回按 recipe_id 分组的评分聚合（recipe_id, average_rating, rating_count）。
// 均值在 SQL 中保留一位小数，过滤与展示使用同一个取值。
func Subquery(db *gorm.DB) *gorm.DB {
	return db.Model(&database.Rating{}).
		Select("recipe_id, ROUND(CAST(AVG(value) AS NUMERIC), 1) AS average_rating, COUNT(*) AS rating_count").
		Group("recipe_id")
}
