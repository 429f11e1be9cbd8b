package api

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"recipehub/internal/comment"
	"recipehub/internal/rating"
	"recipehub/internal/recipe"
)

const recentCommentsOnDetail = 5

// RecipeHandler 处理菜谱的增删改查、列表与评分。
type RecipeHandler struct {
	recipes  *recipe.Store
	ratings  *rating.Aggregator
	comments *comment.Store
	uploads  *imageUploader
	logger   *slog.Logger
}

// NewRecipeHandler 构造菜谱处理器。
func NewRecipeHandler(recipes *recipe.Store, ratings *rating.Aggregator, comments *comment.Store, uploads *imageUploader, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, ratings: ratings, comments: comments, uploads: uploads, logger: logger}
}

// recipeRequest 同时支持 JSON 与 multipart 表单；缺省字段为 nil。
type recipeRequest struct {
	Title           *string  `json:"title" form:"title"`
	Ingredients     []string `json:"ingredients" form:"ingredients"`
	Steps           []string `json:"steps" form:"steps"`
	PreparationTime *int     `json:"preparationTime" form:"preparationTime"`
	IsPublished     *bool    `json:"isPublished" form:"isPublished"`
}

// List 返回已发布菜谱的分页列表。
func (h *RecipeHandler) List(c *gin.Context) {
	logger := loggerFrom(c, h.logger)
	q := recipe.Query{
		Search:          c.Query("search"),
		AuthorID:        c.Query("authorId"),
		PreparationTime: c.Query("preparationTime"),
		Page:            queryInt(c, "page"),
		Limit:           queryInt(c, "limit"),
		SortBy:          c.Query("sortBy"),
		SortOrder:       c.Query("sortOrder"),
	}
	if raw := c.Query("minRating"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			logger.Debug("ignoring invalid minRating", slog.String("min_rating", raw))
		} else {
			q.MinRating = &v
		}
	}

	page, err := h.recipes.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, listResponse[recipeView]{Data: newRecipeListView(page.Items), Pagination: page.Meta})
}

// Get 返回菜谱详情；未发布的菜谱只对作者可见。
func (h *RecipeHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger)
	id := c.Param("id")

	detail, err := h.recipes.Get(ctx, id)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	if !detail.Recipe.IsPublished {
		if callerID, _ := userIDFromContext(c); callerID != detail.Recipe.AuthorID {
			NotFound(c, "Recipe not found")
			return
		}
	}

	recent, err := h.comments.Recent(ctx, id, recentCommentsOnDetail)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recipe":   newRecipeView(detail.Recipe, detail.Summary),
		"comments": newCommentViews(recent),
	})
}

// Create 新建菜谱，可附带 multipart 字段 image。
func (h *RecipeHandler) Create(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req recipeRequest
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger)
	image, err := h.uploads.receive(c)
	if err != nil {
		respondError(c, logger, err)
		return
	}

	in := recipe.Input{
		Ingredients: req.Ingredients,
		Steps:       req.Steps,
		AuthorID:    userID,
		Image:       image,
	}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.PreparationTime != nil {
		in.PreparationTime = *req.PreparationTime
	}

	created, err := h.recipes.Create(ctx, in)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	logger.Info("recipe created", slog.String("recipe_id", created.ID), slog.String("user_id", userID))

	detail, err := h.recipes.Get(ctx, created.ID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Recipe created successfully",
		"recipe":  newRecipeView(detail.Recipe, detail.Summary),
	})
}

// Update 修改菜谱，仅作者可操作。
func (h *RecipeHandler) Update(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req recipeRequest
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger)
	image, err := h.uploads.receive(c)
	if err != nil {
		respondError(c, logger, err)
		return
	}

	id := c.Param("id")
	_, err = h.recipes.Update(ctx, id, userID, recipe.Changes{
		Title:           req.Title,
		Ingredients:     req.Ingredients,
		Steps:           req.Steps,
		PreparationTime: req.PreparationTime,
		IsPublished:     req.IsPublished,
		Image:           image,
	})
	if err != nil {
		respondError(c, logger, err)
		return
	}

	detail, err := h.recipes.Get(ctx, id)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Recipe updated successfully",
		"recipe":  newRecipeView(detail.Recipe, detail.Summary),
	})
}

// Delete 删除菜谱及其评分、评论。
func (h *RecipeHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	logger := loggerFrom(c, h.logger)
	id := c.Param("id")
	if err := h.recipes.Delete(c.Request.Context(), id, userID); err != nil {
		respondError(c, logger, err)
		return
	}
	logger.Info("recipe deleted", slog.String("recipe_id", id), slog.String("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"message": "Recipe deleted successfully"})
}

type rateRequest struct {
	Value *float64 `json:"value"`
}

// Rate 为菜谱评分，每个用户只能评一次。
func (h *RecipeHandler) Rate(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		BadRequest(c, "Rating value is required")
		return
	}

	ctx := c.Request.Context()
	logger := loggerFrom(c, h.logger)
	id := c.Param("id")
	stored, err := h.ratings.Rate(ctx, id, userID, *req.Value)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	summary, err := h.ratings.AverageFor(ctx, id)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Recipe rated successfully",
		"rating": gin.H{
			"id":        stored.ID,
			"value":     stored.Value,
			"recipeId":  stored.RecipeID,
			"authorId":  stored.AuthorID,
			"createdAt": stored.CreatedAt,
		},
		"averageRating": summary.Average,
		"ratingCount":   summary.Count,
	})
}

// Ratings 返回菜谱的评分汇总。
func (h *RecipeHandler) Ratings(c *gin.Context) {
	detail, err := h.recipes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusOK, detail.Summary)
}
