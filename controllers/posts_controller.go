package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/voiceofrajkot/vor-api/config"
	middleware "github.com/voiceofrajkot/vor-api/middleware"
	models "github.com/voiceofrajkot/vor-api/models"
	services "github.com/voiceofrajkot/vor-api/services"
	store "github.com/voiceofrajkot/vor-api/store"
)

type postListResponse struct {
	Posts      []models.Post `json:"posts"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int64         `json:"total"`
	TotalPages int           `json:"totalPages"`
}

// ---------------- LIST ----------------
func ListPosts(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		listPosts(c, cfg, primitive.NilObjectID)
	}
}

func ListAuthorPosts(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "author")
		if !ok {
			return
		}
		listPosts(c, cfg, id)
	}
}

func listPosts(c *gin.Context, cfg *config.Config, authorID primitive.ObjectID) {
	p := readPage(c, 10, 50)

	ctx, cancel := opContext(c)
	defer cancel()

	posts, total, err := cfg.Store.Posts().List(ctx, store.PostFilter{
		Tag:      strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c.Query("tag"), "#"))),
		Query:    strings.TrimSpace(c.Query("q")),
		AuthorID: authorID,
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		respondError(c, cfg, err, "could not fetch posts")
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	if err := attachAuthors(ctx, cfg, posts); err != nil {
		respondError(c, cfg, err, "could not fetch authors")
		return
	}

	c.JSON(http.StatusOK, postListResponse{
		Posts:      posts,
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages(total, p.Limit),
	})
}

// ---------------- GET ONE ----------------
func GetPost(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "post")
		if !ok {
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		post, err := cfg.Store.Posts().FindByID(ctx, id)
		if err != nil {
			respondError(c, cfg, err, "could not fetch post")
			return
		}
		posts := []models.Post{*post}
		if err := attachAuthors(ctx, cfg, posts); err != nil {
			respondError(c, cfg, err, "could not fetch author")
			return
		}
		c.JSON(http.StatusOK, posts[0])
	}
}

// ---------------- CREATE ----------------
func CreatePost(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var input struct {
			Heading string   `json:"heading" form:"heading" binding:"required"`
			Content string   `json:"content" form:"content" binding:"required"`
			Tags    []string `json:"tags" form:"tags"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		heading, content := strings.TrimSpace(input.Heading), strings.TrimSpace(input.Content)
		if heading == "" || content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "heading and content are required"})
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		now := cfg.Now()
		post := &models.Post{
			ID:        primitive.NewObjectID(),
			AuthorID:  userID,
			Heading:   heading,
			Content:   content,
			Tags:      services.NormalizeTags(input.Tags),
			Likes:     []primitive.ObjectID{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := cfg.Store.Posts().Create(ctx, post); err != nil {
			respondError(c, cfg, err, "could not create post")
			return
		}

		if author, err := middleware.LoadUser(ctx, cfg, c); err == nil {
			summary := author.Summary()
			post.AuthorDetails = &summary
		}
		post.Enrich()
		c.JSON(http.StatusCreated, post)
	}
}

// ToggleLike adds the caller to the post's likes, or removes them if already present.
func ToggleLike(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "post")
		if !ok {
			return
		}
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		post, liked, err := cfg.Store.Posts().ToggleLike(ctx, id, userID)
		if err != nil {
			respondError(c, cfg, err, "could not update like")
			return
		}
		post.Enrich()
		c.JSON(http.StatusOK, gin.H{
			"liked":      liked,
			"likesCount": post.LikesCount,
			"likes":      post.Likes,
		})
	}
}

// ---------------- DELETE ----------------
func DeletePost(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "post")
		if !ok {
			return
		}

		ctx, cancel := opContext(c)
		defer cancel()

		user, err := middleware.LoadUser(ctx, cfg, c)
		if err != nil {
			respondError(c, cfg, err, "could not load account")
			return
		}
		post, err := cfg.Store.Posts().FindByID(ctx, id)
		if err != nil {
			respondError(c, cfg, err, "could not fetch post")
			return
		}
		if post.AuthorID != user.ID && !user.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the author or an admin can delete this post"})
			return
		}

		if err := cfg.Store.Posts().Delete(ctx, id); err != nil {
			respondError(c, cfg, err, "could not delete post")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
	}
}

func attachAuthors(ctx context.Context, cfg *config.Config, posts []models.Post) error {
	seen := map[primitive.ObjectID]bool{}
	ids := []primitive.ObjectID{}
	for _, p := range posts {
		if !seen[p.AuthorID] {
			seen[p.AuthorID] = true
			ids = append(ids, p.AuthorID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	users, err := cfg.Store.Users().FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	authors := make(map[primitive.ObjectID]models.UserSummary, len(users))
	for i := range users {
		authors[users[i].ID] = users[i].Summary()
	}
	for i := range posts {
		posts[i].Enrich()
		if a, ok := authors[posts[i].AuthorID]; ok {
			posts[i].AuthorDetails = &a
		}
	}
	return nil
}
