package api

import (
	"time"

	"recipehub/internal/comment"
	"recipehub/internal/database"
	"recipehub/internal/paging"
	"recipehub/internal/rating"
	"recipehub/internal/recipe"
)

type userView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newUserView(u database.User) userView {
	return userView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		ImageURL:  u.ImageURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type authorView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

func newAuthorView(u database.User, fallbackID string) authorView {
	if u.ID == "" {
		return authorView{ID: fallbackID}
	}
	return authorView{ID: u.ID, Name: u.Name, ImageURL: u.ImageURL}
}

type imageView struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

type recipeView struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Ingredients     []string   `json:"ingredients"`
	Steps           []string   `json:"steps"`
	PreparationTime int        `json:"preparationTime"`
	Image           *imageView `json:"image,omitempty"`
	Author          authorView `json:"author"`
	IsPublished     bool       `json:"isPublished"`
	AverageRating   float64    `json:"averageRating"`
	RatingCount     int64      `json:"ratingCount"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func newRecipeView(r database.Recipe, summary rating.Summary) recipeView {
	view := recipeView{
		ID:              r.ID,
		Title:           r.Title,
		Ingredients:     nonNil(r.Ingredients),
		Steps:           nonNil(r.Steps),
		PreparationTime: r.PreparationTime,
		Author:          newAuthorView(r.Author, r.AuthorID),
		IsPublished:     r.IsPublished,
		AverageRating:   summary.Average,
		RatingCount:     summary.Count,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.ImageURL != "" {
		view.Image = &imageView{URL: r.ImageURL, PublicID: r.ImagePublicID}
	}
	return view
}

func newRecipeListView(items []recipe.Item) []recipeView {
	out := make([]recipeView, 0, len(items))
	for _, item := range items {
		out = append(out, newRecipeView(item.Recipe, rating.Summary{Average: item.AverageRating, Count: item.RatingCount}))
	}
	return out
}

type commentView struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	RecipeID  string     `json:"recipeId"`
	Author    authorView `json:"author"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func newCommentView(c database.Comment) commentView {
	return commentView{
		ID:        c.ID,
		Content:   c.Content,
		RecipeID:  c.RecipeID,
		Author:    newAuthorView(c.Author, c.AuthorID),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func newCommentViews(items []database.Comment) []commentView {
	out := make([]commentView, 0, len(items))
	for _, c := range items {
		out = append(out, newCommentView(c))
	}
	return out
}

type listResponse[T any] struct {
	Data       []T         `json:"data"`
	Pagination paging.Meta `json:"pagination"`
}

type commentListResponse struct {
	listResponse[commentView]
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

func newCommentListResponse(p comment.Page) commentListResponse {
	return commentListResponse{
		listResponse: listResponse[commentView]{Data: newCommentViews(p.Items), Pagination: p.Meta},
		HasNext:      p.Meta.HasNext(),
		HasPrev:      p.Meta.HasPrev(),
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
