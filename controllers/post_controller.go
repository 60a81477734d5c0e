package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rodeway/board/middleware"
	"github.com/rodeway/board/services"
	"github.com/rodeway/board/utils"
)

// PostController manages posts, comments and attachments.
type PostController struct {
	content  *services.ContentService
	uploads  *services.UploadService
	cacheTTL time.Duration
}

// NewPostController creates a new PostController instance.
func NewPostController(content *services.ContentService, uploads *services.UploadService, cacheTTL time.Duration) *PostController {
	return &PostController{content: content, uploads: uploads, cacheTTL: cacheTTL}
}

// CreatePost allows authenticated users to create new posts.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Title       string   `json:"title" binding:"required,min=1"`
		Content     string   `json:"content" binding:"required"`
		Category    string   `json:"category"`
		Attachments []string `json:"attachments"`
		IsNotice    bool     `json:"is_notice"`
		IsSecret    bool     `json:"is_secret"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	post, err := p.content.CreatePost(ctx.Request.Context(), middleware.SessionFrom(ctx), services.NewPost{
		Title:       utils.SanitizePlain(req.Title),
		Content:     utils.Sanitize(req.Content),
		Category:    strings.TrimSpace(req.Category),
		Attachments: req.Attachments,
		IsNotice:    req.IsNotice,
		IsSecret:    req.IsSecret,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.InvalidateByPrefix(utils.CachePrefixPostList)
	utils.Success(ctx, gin.H{"post": post})
}

// ListPosts returns one page of post summaries. Unfiltered pages are cached briefly.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	search := ctx.Query("search")
	q := services.ListQuery{
		Filter:   utils.SearchTerm(search),
		Category: strings.TrimSpace(ctx.Query("category")),
		Sort:     services.SortOrder(strings.TrimSpace(ctx.Query("sort"))),
		Page:     page,
		PageSize: pageSize,
	}

	// A term made only of markup can never match stored text.
	if search != "" && q.Filter == "" {
		utils.Success(ctx, services.Page[services.PostSummary]{Items: []services.PostSummary{}, Page: page, PageSize: pageSize})
		return
	}

	// Summaries never carry secret content, so one cached page serves every viewer.
	var cacheKey string
	if q.Filter == "" {
		cacheKey = utils.CacheKey(utils.CachePrefixPostList,
			"sort="+string(q.Sort), "cat="+q.Category, fmt.Sprintf("page=%d", page), fmt.Sprintf("size=%d", pageSize))
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			utils.SuccessRaw(ctx, b)
			return
		}
	}

	result, err := p.content.ListPosts(ctx.Request.Context(), middleware.SessionFrom(ctx), q)
	if err != nil {
		respondError(ctx, err)
		return
	}

	envelope := utils.Envelope(result)
	if cacheKey != "" {
		utils.CacheSetJSON(cacheKey, envelope, p.cacheTTL)
	}
	ctx.JSON(http.StatusOK, envelope)
}

// GetPost returns one post and counts the view.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	view, err := p.content.ViewPost(ctx.Request.Context(), middleware.SessionFrom(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, view)
}

// DeletePost removes a post and its comments. Author or admin only.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := p.content.DeletePost(ctx.Request.Context(), middleware.SessionFrom(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(utils.CachePrefixPostList)
	utils.Success(ctx, gin.H{"id": id, "deleted": true})
}

// LikePost adds a like to a post.
func (p *PostController) LikePost(ctx *gin.Context) {
	p.react(ctx, p.content.LikePost, "likes")
}

// DislikePost adds a dislike to a post.
func (p *PostController) DislikePost(ctx *gin.Context) {
	p.react(ctx, p.content.DislikePost, "dislikes")
}

func (p *PostController) react(ctx *gin.Context, op func(ctx context.Context, sess services.Session, id uint) (int64, error), field string) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	n, err := op(ctx.Request.Context(), middleware.SessionFrom(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(utils.CachePrefixPostList)
	utils.Success(ctx, gin.H{"id": id, field: n})
}

// ListComments returns the comments of a post in the order they were written.
func (p *PostController) ListComments(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	list, err := p.content.ListComments(ctx.Request.Context(), middleware.SessionFrom(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": list})
}

// CreateComment adds a comment or a reply to a post.
func (p *PostController) CreateComment(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Content  string `json:"content" binding:"required"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid request payload")
		return
	}

	comment, err := p.content.AddComment(ctx.Request.Context(), middleware.SessionFrom(ctx), postID, utils.Sanitize(req.Content), req.ParentID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

// LikeComment adds a like to a comment.
func (p *PostController) LikeComment(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	n, err := p.content.LikeComment(ctx.Request.Context(), middleware.SessionFrom(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": id, "likes": n})
}

// DeleteComment removes a comment. Author or admin only.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := p.content.DeleteComment(ctx.Request.Context(), middleware.SessionFrom(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": id, "deleted": true})
}

// UploadAttachment stores a file in the blob store and returns its handle.
func (p *PostController) UploadAttachment(ctx *gin.Context) {
	// Accept common field name 'file' or fallback to 'f'
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		file, header, err = ctx.Request.FormFile("f")
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
			return
		}
	}
	defer file.Close()

	rec, err := p.uploads.Upload(ctx.Request.Context(), middleware.SessionFrom(ctx), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"handle": rec.Handle,
		"url":    "/api/v1/blobs/" + rec.Handle,
		"size":   rec.Size,
	})
}

// ServeBlob streams a stored blob.
func (p *PostController) ServeBlob(ctx *gin.Context) {
	handle := strings.TrimPrefix(ctx.Param("handle"), "/")
	rc, contentType, err := p.uploads.Open(ctx.Request.Context(), handle)
	if err != nil {
		respondError(ctx, err)
		return
	}
	defer rc.Close()

	ctx.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Cache-Control":          "public, max-age=86400",
		"X-Content-Type-Options": "nosniff",
	})
}
