package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"recipehub/internal/comment"
)

// CommentHandler 处理菜谱评论。
type CommentHandler struct {
	comments *comment.Store
	logger   *slog.Logger
}

func NewCommentHandler(comments *comment.Store, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

type commentRequest struct {
	Content string `json:"content"`
}

// List 分页返回菜谱下的评论。
func (h *CommentHandler) List(c *gin.Context) {
	page, err := h.comments.ListForRecipe(c.Request.Context(), c.Param("id"), comment.ListParams{
		Page:      queryInt(c, "page"),
		Limit:     queryInt(c, "limit"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	})
	if err != nil {
		respondError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusOK, newCommentListResponse(page))
}

// Add 发表评论。
func (h *CommentHandler) Add(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	created, err := h.comments.Add(c.Request.Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		respondError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Comment added successfully", "comment": newCommentView(created)})
}

// Update 修改评论，仅作者可操作。
func (h *CommentHandler) Update(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	updated, err := h.comments.Update(c.Request.Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		respondError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment updated successfully", "comment": newCommentView(updated)})
}

// Remove 删除评论，仅作者可操作。
func (h *CommentHandler) Remove(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if err := h.comments.Remove(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment removed successfully"})
}
