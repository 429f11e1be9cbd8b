// Package user is the identity store: account creation, credential checks, self-service profile
// edits and account deletion with everything the account authored.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"recipehub/internal/auth"
	"recipehub/internal/database"
	"recipehub/internal/errcode"
	"recipehub/internal/metrics"
	"recipehub/internal/paging"
	"recipehub/internal/validation"
)

const (
	msgUserNotFound       = "User not found"
	msgEmailTaken         = "User with this email already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgNotSelf            = "You can only modify your own account"
)

var signupMessages = validation.Messages{
	"Name.required":     "Name is required",
	"Name.max":          "Name must be at most 255 characters",
	"Email":             "A valid email is required",
	"Password.required": "Password is required",
	"Password.min":      "Password must be at least 8 characters long",
	"Password.max":      "Password must be at most 72 bytes long",
}

var profileMessages = validation.Messages{
	"Name.required": "Name is required",
	"Name.max":      "Name must be at most 255 characters",
	"ImageURL":      "Image must be a valid URL",
}

// ImageStore 是图片托管的删除能力。
type ImageStore interface {
	DeleteObject(ctx context.Context, objectKey string) error
}

// Changes 描述资料更新；nil 字段保持不变。邮箱不可修改。
type Changes struct {
	Name     *string
	ImageURL *string
}

// Page 是一页用户列表。
type Page struct {
	Items []database.User
	Meta  paging.Meta
}

// Store 是用户仓储。
type Store struct {
	db     *gorm.DB
	images ImageStore
	logger *slog.Logger
}

func NewStore(db *gorm.DB, images ImageStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, images: images, logger: logger}
}

type signupFields struct {
	Name     string `validate:"required,max=255"`
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,min=8"`
}

// Create registers an account. The email is normalized to lower case and must be unused; the unique
// index settles concurrent signups for the same address.
func (s *Store) Create(ctx context.Context, name, email, password string) (database.User, error) {
	f := signupFields{
		Name:     strings.TrimSpace(name),
		Email:    normalizeEmail(email),
		Password: password,
	}
	if err := validation.Struct(&f, signupMessages); err != nil {
		return database.User{}, err
	}

	hash, err := auth.HashPassword(f.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return database.User{}, errcode.Validation(signupMessages["Password.max"])
	}
	if err != nil {
		return database.User{}, fmt.Errorf("hash password: %w", err)
	}

	db := s.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&database.User{}).Where("email = ?", f.Email).Count(&existing).Error; err != nil {
		return database.User{}, fmt.Errorf("check email: %w", err)
	}
	if existing > 0 {
		return database.User{}, errcode.ConflictError(msgEmailTaken)
	}

	user := database.User{Name: f.Name, Email: f.Email, PasswordHash: hash}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return database.User{}, errcode.ConflictError(msgEmailTaken)
		}
		return database.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate 校验邮箱与密码；未知邮箱与错误密码返回同一个错误。
func (s *Store) Authenticate(ctx context.Context, email, password string) (database.User, error) {
	var user database.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.User{}, errcode.Authentication(msgInvalidCredentials)
	}
	if err != nil {
		return database.User{}, fmt.Errorf("find user by email: %w", err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return database.User{}, errcode.Authentication(msgInvalidCredentials)
	}
	return user, nil
}

// Get 按 ID 返回用户。
func (s *Store) Get(ctx context.Context, id string) (database.User, error) {
	var user database.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.User{}, errcode.NotFound(msgUserNotFound)
	}
	if err != nil {
		return database.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return user, nil
}

// List 按注册时间倒序分页返回用户。
func (s *Store) List(ctx context.Context, page, limit int) (Page, error) {
	page, limit = paging.Normalize(page, limit)
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&database.User{}).Count(&total).Error; err != nil {
		return Page{}, fmt.Errorf("count users: %w", err)
	}
	items := make([]database.User, 0, limit)
	if total > 0 {
		if err := db.Order("created_at DESC").Order("id ASC").
			Limit(limit).Offset(paging.Offset(page, limit)).
			Find(&items).Error; err != nil {
			return Page{}, fmt.Errorf("list users: %w", err)
		}
	}
	return Page{Items: items, Meta: paging.NewMeta(page, limit, total)}, nil
}

type profileFields struct {
	Name     string `validate:"required,max=255"`
	ImageURL string `validate:"omitempty,url,max=512"`
}

// Update 修改本人资料。
func (s *Store) Update(ctx context.Context, id, callerID string, ch Changes) (database.User, error) {
	user, err := s.loadSelf(ctx, id, callerID)
	if err != nil {
		return database.User{}, err
	}

	f := profileFields{Name: user.Name, ImageURL: user.ImageURL}
	updates := map[string]any{}
	if ch.Name != nil {
		f.Name = strings.TrimSpace(*ch.Name)
		updates["name"] = f.Name
	}
	if ch.ImageURL != nil {
		f.ImageURL = strings.TrimSpace(*ch.ImageURL)
		updates["image_url"] = f.ImageURL
	}
	if err := validation.Struct(&f, profileMessages); err != nil {
		return database.User{}, err
	}
	if len(updates) == 0 {
		return user, nil
	}

	db := s.db.WithContext(ctx)
	if err := db.Model(&database.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return database.User{}, fmt.Errorf("update user %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Delete removes the account together with its recipes, the ratings and comments on those recipes,
// and every rating and comment the account wrote elsewhere. Recipe images are released afterwards.
func (s *Store) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.loadSelf(ctx, id, callerID); err != nil {
		return err
	}

	var imageIDs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipes []database.Recipe
		if err := tx.Select("id", "image_public_id").Where("author_id = ?", id).Find(&recipes).Error; err != nil {
			return fmt.Errorf("load recipes: %w", err)
		}
		recipeIDs := make([]string, 0, len(recipes))
		for _, r := range recipes {
			recipeIDs = append(recipeIDs, r.ID)
			if r.ImagePublicID != "" {
				imageIDs = append(imageIDs, r.ImagePublicID)
			}
		}

		for _, model := range []any{&database.Rating{}, &database.Comment{}} {
			q := tx.Where("author_id = ?", id)
			if len(recipeIDs) > 0 {
				q = tx.Where("author_id = ? OR recipe_id IN ?", id, recipeIDs)
			}
			if err := q.Delete(model).Error; err != nil {
				return fmt.Errorf("delete %T: %w", model, err)
			}
		}
		if err := tx.Where("author_id = ?", id).Delete(&database.Recipe{}).Error; err != nil {
			return fmt.Errorf("delete recipes: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&database.User{}).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}

	for _, publicID := range imageIDs {
		if s.images == nil {
			break
		}
		if err := s.images.DeleteObject(ctx, publicID); err != nil {
			metrics.ImageReleaseFailed("user_delete")
			s.logger.Warn("release recipe image failed", "public_id", publicID, "user_id", id, "error", err)
		}
	}
	return nil
}

func (s *Store) loadSelf(ctx context.Context, id, callerID string) (database.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return database.User{}, err
	}
	if callerID == "" || callerID != user.ID {
		return database.User{}, errcode.Authorization(msgNotSelf)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
