package recipe

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"recipehub/internal/database"
	"recipehub/internal/paging"
	"recipehub/internal/rating"
)

const (
	averageExpr = "COALESCE(agg.average_rating, 0)"
	countExpr   = "COALESCE(agg.rating_count, 0)"
)

var sortColumns = map[string]string{
	"createdAt":       "recipes.created_at",
	"updatedAt":       "recipes.updated_at",
	"title":           "recipes.title",
	"preparationTime": "recipes.preparation_time",
	"rating":          averageExpr,
	"averageRating":   averageExpr,
}

// Query 是公开列表的查询条件。零值表示不过滤、按创建时间倒序取第一页。
type Query struct {
	Search          string
	AuthorID        string
	PreparationTime string
	MinRating       *float64
	Page            int
	Limit           int
	SortBy          string
	SortOrder       string
}

// Item 是列表中的一条菜谱，附带评分汇总。
type Item struct {
	database.Recipe
	AverageRating float64
	RatingCount   int64
}

// Page 是一页列表结果。
type Page struct {
	Items []Item
	Meta  paging.Meta
}

// List runs the public listing. Filters, the rating threshold, the total and the ordering are all
// evaluated over the whole published set before the page is cut, so pages never overlap and a
// rating-filtered page is short only when it is the last one.
func (s *Store) List(ctx context.Context, q Query) (Page, error) {
	page, limit := paging.Normalize(q.Page, q.Limit)

	var total int64
	if err := s.filtered(ctx, q).Count(&total).Error; err != nil {
		return Page{}, fmt.Errorf("count recipes: %w", err)
	}
	meta := paging.NewMeta(page, limit, total)
	if total == 0 {
		return Page{Items: []Item{}, Meta: meta}, nil
	}

	column, direction := s.sortClause(q.SortBy, q.SortOrder)
	items := make([]Item, 0, limit)
	err := s.filtered(ctx, q).
		Select("recipes.*, " + averageExpr + " AS average_rating, " + countExpr + " AS rating_count").
		Order(column + " " + direction).
		Order("recipes.created_at ASC").
		Order("recipes.id ASC").
		Limit(limit).
		Offset(paging.Offset(page, limit)).
		Find(&items).Error
	if err != nil {
		return Page{}, fmt.Errorf("list recipes: %w", err)
	}

	if err := s.attachAuthors(ctx, items); err != nil {
		return Page{}, err
	}
	return Page{Items: items, Meta: meta}, nil
}

// filtered 每次返回一个新的查询，Count 与取数各用一份，互不污染 SELECT。
func (s *Store) filtered(ctx context.Context, q Query) *gorm.DB {
	tx := s.db.WithContext(ctx).
		Table("recipes").
		Joins("LEFT JOIN (?) AS agg ON agg.recipe_id = recipes.id", rating.Subquery(s.db)).
		Where("recipes.is_published = ?", true)

	if authorID := strings.TrimSpace(q.AuthorID); authorID != "" {
		tx = tx.Where("recipes.author_id = ?", authorID)
	}

	switch strings.TrimSpace(q.PreparationTime) {
	case "":
	case "0-30":
		tx = tx.Where("recipes.preparation_time <= ?", 30)
	case "30-60":
		tx = tx.Where("recipes.preparation_time > ? AND recipes.preparation_time <= ?", 30, 60)
	case "60-120":
		tx = tx.Where("recipes.preparation_time > ? AND recipes.preparation_time <= ?", 60, 120)
	case "120+":
		tx = tx.Where("recipes.preparation_time > ?", 120)
	default:
		s.logger.Debug("ignoring unknown preparation time bucket", "bucket", q.PreparationTime)
	}

	if term := strings.TrimSpace(q.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		tx = tx.Where(
			`(LOWER(recipes.title) LIKE ? ESCAPE '\'`+
				` OR `+s.ingredientMatch()+
				` OR recipes.author_id IN (SELECT users.id FROM users WHERE LOWER(users.name) LIKE ? ESCAPE '\' OR LOWER(users.email) LIKE ? ESCAPE '\'))`,
			pattern, pattern, pattern, pattern,
		)
	}

	if q.MinRating != nil {
		tx = tx.Where(averageExpr+" >= ?", *q.MinRating)
	}
	return tx
}

// ingredientMatch 逐条匹配配料数组元素，而不是整段 JSON 文本。
func (s *Store) ingredientMatch() string {
	switch s.db.Dialector.Name() {
	case "postgres":
		return `EXISTS (SELECT 1 FROM jsonb_array_elements_text(recipes.ingredients) AS e(v) WHERE LOWER(e.v) LIKE ? ESCAPE '\')`
	case "sqlite":
		return `EXISTS (SELECT 1 FROM json_each(recipes.ingredients) WHERE LOWER(json_each.value) LIKE ? ESCAPE '\')`
	default:
		return `LOWER(CAST(recipes.ingredients AS TEXT)) LIKE ? ESCAPE '\'`
	}
}

func (s *Store) sortClause(sortBy, sortOrder string) (string, string) {
	column, ok := sortColumns[sortBy]
	if !ok {
		if sortBy != "" {
			s.logger.Debug("unknown sort field, falling back to createdAt", "sort_by", sortBy)
		}
		column = sortColumns["createdAt"]
	}

	switch strings.ToLower(sortOrder) {
	case "asc":
		return column, "ASC"
	case "", "desc":
		return column, "DESC"
	default:
		s.logger.Debug("unknown sort order, falling back to desc", "sort_order", sortOrder)
		return column, "DESC"
	}
}

func (s *Store) attachAuthors(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.AuthorID]; !ok {
			seen[item.AuthorID] = struct{}{}
			ids = append(ids, item.AuthorID)
		}
	}

	var authors []database.User
	if err := s.db.WithContext(ctx).
		Select("id", "name", "email", "image_url").
		Where("id IN ?", ids).
		Find(&authors).Error; err != nil {
		return fmt.Errorf("load recipe authors: %w", err)
	}
	byID := make(map[string]database.User, len(authors))
	for _, author := range authors {
		byID[author.ID] = author
	}
	for i := range items {
		items[i].Author = byID[items[i].AuthorID]
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
