package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string `gorm:"size:255;not null"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	ImageURL     string `gorm:"size:512"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Recipe 表示用户发布的菜谱。评分均值与数量由 Rating 实时聚合，不落库。
type Recipe struct {
	ID              string                      `gorm:"primaryKey;size:36"`
	Title           string                      `gorm:"size:100;not null"`
	Ingredients     datatypes.JSONSlice[string] `gorm:"not null"`
	Steps           datatypes.JSONSlice[string] `gorm:"not null"`
	PreparationTime int                         `gorm:"not null;index"`
	ImageURL        string                      `gorm:"size:512"`
	ImagePublicID   string                      `gorm:"size:255"`
	AuthorID        string                      `gorm:"size:36;not null;index"`
	Author          User                        `gorm:"constraint:OnDelete:CASCADE"`
	IsPublished     bool                        `gorm:"not null;index"`
	CreatedAt       time.Time                   `gorm:"index"`
	UpdatedAt       time.Time
}

// Rating 表示用户对菜谱的一次评分；(AuthorID, RecipeID) 唯一。
type Rating struct {
	ID        string  `gorm:"primaryKey;size:36"`
	Value     float64 `gorm:"not null"`
	AuthorID  string  `gorm:"size:36;not null;uniqueIndex:idx_ratings_author_recipe,priority:1"`
	Author    User    `gorm:"constraint:OnDelete:CASCADE"`
	RecipeID  string  `gorm:"size:36;not null;uniqueIndex:idx_ratings_author_recipe,priority:2;index"`
	Recipe    Recipe  `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Comment 表示菜谱下的评论。
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Content   string    `gorm:"size:500;not null"`
	AuthorID  string    `gorm:"size:36;not null;index"`
	Author    User      `gorm:"constraint:OnDelete:CASCADE"`
	RecipeID  string    `gorm:"size:36;not null;index"`
	Recipe    Recipe    `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (u *User) BeforeCreate(*gorm.DB) error    { assignID(&u.ID); return nil }
func (r *Recipe) BeforeCreate(*gorm.DB) error  { assignID(&r.ID); return nil }
func (r *Rating) BeforeCreate(*gorm.DB) error  { assignID(&r.ID); return nil }
func (c *Comment) BeforeCreate(*gorm.DB) error { assignID(&c.ID); return nil }

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
