package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"recipehub/internal/user"
)

// UserHandler 处理用户资料的查询、修改与注销。
type UserHandler struct {
	users  *user.Store
	logger *slog.Logger
}

func NewUserHandler(users *user.Store, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	ImageURL *string `json:"imageUrl"`
}

// List 分页返回用户。
func (h *UserHandler) List(c *gin.Context) {
	page, err := h.users.List(c.Request.Context(), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, loggerFrom(c, h.logger), err)
		return
	}
	views := make([]userView, 0, len(page.Items))
	for _, u := range page.Items {
		views = append(views, newUserView(u))
	}
	c.JSON(http.StatusOK, listResponse[userView]{Data: views, Pagination: page.Meta})
}

// Get 返回单个用户。
func (h *UserHandler) Get(c *gin.Context) {
	found, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserView(found)})
}

// Update 修改本人资料；邮箱不可修改。
func (h *UserHandler) Update(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	updated, err := h.users.Update(c.Request.Context(), c.Param("id"), userID, user.Changes{Name: req.Name, ImageURL: req.ImageURL})
	if err != nil {
		respondError(c, loggerFrom(c, h.logger), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": newUserView(updated)})
}

// Delete 注销本人账号，连带删除其菜谱、评分与评论。
func (h *UserHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	logger := loggerFrom(c, h.logger)
	if err := h.users.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, logger, err)
		return
	}
	logger.Info("user deleted", slog.String("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
