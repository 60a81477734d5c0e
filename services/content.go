package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rodeway/board/models"
	"github.com/rodeway/board/scoring"
)

// ContentService owns posts and comments and applies the point awards tied to them.
type ContentService struct {
	base
}

// NewContentService creates a ContentService.
func NewContentService(db *gorm.DB, opts ...Option) *ContentService {
	return &ContentService{base: newBase(db, opts)}
}

// SortOrder is the user-chosen secondary ordering of a post listing.
type SortOrder string

const (
	SortNewest     SortOrder = "newest"
	SortMostLiked  SortOrder = "most-liked"
	SortMostViewed SortOrder = "most-viewed"
)

const (
	maxTitleLen = 255
	maxPageSize = 100
)

// NewPost carries the fields of a post being created.
type NewPost struct {
	Title       string
	Content     string
	Category    string
	Attachments []string
	IsNotice    bool
	IsSecret    bool
}

// Author is the part of an account shown next to content.
type Author struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Level    int    `json:"level"`
	Rank     string `json:"rank"`
}

func authorOf(u models.User) Author {
	return Author{
		ID:       u.ID,
		Username: u.Username,
		Nickname: u.Nickname,
		Level:    scoring.Level(u.Points),
		Rank:     scoring.Rank(u.Points),
	}
}

// PostSummary is one row of a post listing. It never carries content.
type PostSummary struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Author    Author    `json:"author"`
	Views     int64     `json:"views"`
	Likes     int64     `json:"likes"`
	Dislikes  int64     `json:"dislikes"`
	IsNotice  bool      `json:"is_notice"`
	IsSecret  bool      `json:"is_secret"`
	CreatedAt time.Time `json:"created_at"`
}

// PostView is the result of viewing a post. Redacted views omit content and attachments.
type PostView struct {
	PostSummary
	Content     string   `json:"content,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
	Redacted    bool     `json:"redacted"`
}

func summaryOf(p models.Post) PostSummary {
	return PostSummary{
		ID:        p.ID,
		Title:     p.Title,
		Category:  p.Category,
		Author:    authorOf(p.User),
		Views:     p.Views,
		Likes:     p.Likes,
		Dislikes:  p.Dislikes,
		IsNotice:  p.IsNotice,
		IsSecret:  p.IsSecret,
		CreatedAt: p.CreatedAt,
	}
}

func canRead(p models.Post, sess Session, admin bool) bool {
	return !p.IsSecret || admin || (sess.Authenticated() && sess.AccountID == p.UserID)
}

func validCategory(c string) bool {
	return c == models.CategoryFeed || c == models.CategoryNotice
}

// CreatePost stores a post for the session's account and awards the post points.
// A notice flag from a non-admin author is dropped without error.
func (s *ContentService) CreatePost(ctx context.Context, sess Session, in NewPost) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return nil, invalid("title must be 1-%d characters", maxTitleLen)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, invalid("content cannot be empty")
	}
	category := in.Category
	if category == "" {
		category = models.CategoryFeed
	}
	if !validCategory(category) {
		return nil, invalid("unknown category %q", category)
	}
	attachments := ""
	if len(in.Attachments) > 0 {
		b, err := json.Marshal(in.Attachments)
		if err != nil {
			return nil, invalid("attachments: %v", err)
		}
		attachments = string(b)
	}

	var post models.Post
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		author, err := loadActor(tx, sess)
		if err != nil {
			return err
		}
		isNotice := in.IsNotice && author.IsAdmin()
		if in.IsNotice && !isNotice {
			s.log.Info("notice flag dropped for non-admin author", zap.Uint("account_id", author.ID))
		}

		post = models.Post{
			UserID:      author.ID,
			Title:       title,
			Content:     in.Content,
			Category:    category,
			Attachments: attachments,
			IsNotice:    isNotice,
			IsSecret:    in.IsSecret,
			CreatedAt:   s.stamp(),
		}
		if err := tx.Omit("User").Create(&post).Error; err != nil {
			return err
		}
		if err := adjustPoints(tx, author.ID, scoring.PostAward); err != nil {
			return err
		}
		author.Points += scoring.PostAward
		post.User = *author
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("post created", zap.Uint("post_id", post.ID), zap.Uint("author_id", post.UserID), zap.Bool("notice", post.IsNotice))
	return &post, nil
}

// ViewPost counts one view and returns the post. Secret posts are redacted for everyone
// but their author and admins; the view still counts.
func (s *ContentService) ViewPost(ctx context.Context, sess Session, postID uint) (*PostView, error) {
	var view PostView
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn("views", gorm.Expr("views + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostNotFound
		}

		var post models.Post
		if err := tx.Preload("User").First(&post, postID).Error; err != nil {
			return err
		}
		admin, err := isAdmin(tx, sess)
		if err != nil {
			return err
		}

		view = PostView{PostSummary: summaryOf(post)}
		if !canRead(post, sess, admin) {
			view.Redacted = true
			return nil
		}
		view.Content = post.Content
		if post.Attachments != "" {
			if err := json.Unmarshal([]byte(post.Attachments), &view.Attachments); err != nil {
				s.log.Warn("post attachments unreadable", zap.Uint("post_id", post.ID), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// reactor admits anonymous reactions but refuses a signed-in account that is banned or gone.
func reactor(tx *gorm.DB, sess Session) error {
	if !sess.Authenticated() {
		return nil
	}
	_, err := loadActor(tx, sess)
	return err
}

// LikePost adds one like and awards the post's author.
func (s *ContentService) LikePost(ctx context.Context, sess Session, postID uint) (int64, error) {
	var likes int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if err := reactor(tx, sess); err != nil {
			return err
		}
		post, err := s.bumpPost(tx, postID, "likes")
		if err != nil {
			return err
		}
		likes = post.Likes
		return adjustPoints(tx, post.UserID, scoring.LikeAward)
	})
	return likes, err
}

// DislikePost adds one dislike. Dislikes do not change points.
func (s *ContentService) DislikePost(ctx context.Context, sess Session, postID uint) (int64, error) {
	var dislikes int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if err := reactor(tx, sess); err != nil {
			return err
		}
		post, err := s.bumpPost(tx, postID, "dislikes")
		if err != nil {
			return err
		}
		dislikes = post.Dislikes
		return nil
	})
	return dislikes, err
}

// bumpPost increments a counter column in place and returns the updated row.
func (s *ContentService) bumpPost(tx *gorm.DB, postID uint, column string) (*models.Post, error) {
	res := tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrPostNotFound
	}
	var post models.Post
	if err := tx.Select("id", "user_id", "likes", "dislikes").First(&post, postID).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// ListQuery selects and orders a page of posts.
type ListQuery struct {
	// Filter is a literal, case-sensitive substring matched against title or content.
	Filter   string
	Category string
	Sort     SortOrder
	Page     int
	PageSize int
}

func (s *ContentService) normalize(q ListQuery) (ListQuery, error) {
	if q.Sort == "" {
		q.Sort = SortNewest
	}
	switch q.Sort {
	case SortNewest, SortMostLiked, SortMostViewed:
	default:
		return q, invalid("unknown sort %q", q.Sort)
	}
	if q.Category != "" && !validCategory(q.Category) {
		return q, invalid("unknown category %q", q.Category)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = s.pageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	return q, nil
}

func orderFor(sort SortOrder) []string {
	// Notices always come first; the chosen order applies within each group.
	order := []string{"is_notice DESC"}
	switch sort {
	case SortMostLiked:
		order = append(order, "likes DESC")
	case SortMostViewed:
		order = append(order, "views DESC")
	}
	return append(order, "created_at DESC", "id DESC")
}

// pastEnd reports whether a 1-indexed page starts beyond total rows. It never multiplies,
// so huge page numbers cannot overflow into a valid offset.
func pastEnd(page, size int, total int64) bool {
	pages := (total + int64(size) - 1) / int64(size)
	return int64(page-1) >= pages
}

// likeEscaper escapes LIKE wildcards so the search term is matched literally.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ListPosts returns one page of posts. A page past the end is empty, not an error.
//
// The database prefilter is a bound, escaped LIKE that may be case-insensitive depending on
// the driver; the exact case-sensitive match runs afterwards in Go. Content only counts as a
// match when the viewer may read it.
func (s *ContentService) ListPosts(ctx context.Context, sess Session, q ListQuery) (Page[PostSummary], error) {
	q, err := s.normalize(q)
	if err != nil {
		return Page[PostSummary]{}, err
	}

	var page Page[PostSummary]
	err = s.read(ctx, func(db *gorm.DB) error {
		scoped := func() *gorm.DB {
			query := db.Model(&models.Post{})
			if q.Category != "" {
				query = query.Where("category = ?", q.Category)
			}
			return query
		}
		ordered := func(query *gorm.DB) *gorm.DB {
			for _, o := range orderFor(q.Sort) {
				query = query.Order(o)
			}
			return query
		}

		if q.Filter == "" {
			var total int64
			if err := scoped().Count(&total).Error; err != nil {
				return err
			}
			if pastEnd(q.Page, q.PageSize, total) {
				page = newPage[PostSummary](nil, q.Page, q.PageSize, total)
				return nil
			}
			var posts []models.Post
			if err := ordered(scoped()).Preload("User").Offset((q.Page - 1) * q.PageSize).Limit(q.PageSize).Find(&posts).Error; err != nil {
				return err
			}
			items := make([]PostSummary, 0, len(posts))
			for _, p := range posts {
				items = append(items, summaryOf(p))
			}
			page = newPage(items, q.Page, q.PageSize, total)
			return nil
		}

		like := "%" + likeEscaper.Replace(q.Filter) + "%"
		var candidates []models.Post
		if err := ordered(scoped()).Where("(title LIKE ? ESCAPE '!' OR content LIKE ? ESCAPE '!')", like, like).
			Preload("User").Find(&candidates).Error; err != nil {
			return err
		}
		admin, err := isAdmin(db, sess)
		if err != nil {
			return err
		}

		matched := make([]PostSummary, 0, len(candidates))
		for _, p := range candidates {
			if strings.Contains(p.Title, q.Filter) || (canRead(p, sess, admin) && strings.Contains(p.Content, q.Filter)) {
				matched = append(matched, summaryOf(p))
			}
		}
		var items []PostSummary
		if !pastEnd(q.Page, q.PageSize, int64(len(matched))) {
			start := (q.Page - 1) * q.PageSize
			end := min(start+q.PageSize, len(matched))
			items = matched[start:end]
		}
		page = newPage(items, q.Page, q.PageSize, int64(len(matched)))
		return nil
	})
	return page, err
}

// DeletePost tombstones a post and its comments. Only the author or an admin may delete.
func (s *ContentService) DeletePost(ctx context.Context, sess Session, postID uint) error {
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		actor, err := loadActor(tx, sess)
		if err != nil {
			return err
		}
		var post models.Post
		if err := tx.First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}
		if post.UserID != actor.ID && !actor.IsAdmin() {
			return ErrAccessDenied
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err == nil {
		s.log.Info("post deleted", zap.Uint("post_id", postID), zap.Uint("actor_id", sess.AccountID))
	}
	return err
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	ID        uint      `json:"id"`
	PostID    uint      `json:"post_id"`
	ParentID  *uint     `json:"parent_id,omitempty"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	Likes     int64     `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

func commentViewOf(c models.Comment) CommentView {
	return CommentView{
		ID:        c.ID,
		PostID:    c.PostID,
		ParentID:  c.ParentID,
		Author:    authorOf(c.User),
		Content:   c.Content,
		Likes:     c.Likes,
		CreatedAt: c.CreatedAt,
	}
}

// readablePost loads a post and checks that the session may read it.
func readablePost(tx *gorm.DB, sess Session, postID uint) (*models.Post, error) {
	var post models.Post
	if err := tx.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	admin, err := isAdmin(tx, sess)
	if err != nil {
		return nil, err
	}
	if !canRead(post, sess, admin) {
		return nil, ErrAccessDenied
	}
	return &post, nil
}

// AddComment stores a comment, awards the comment points and notifies the people replied to.
// A parent must be a live comment on the same post.
func (s *ContentService) AddComment(ctx context.Context, sess Session, postID uint, content string, parentID *uint) (*models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, invalid("content cannot be empty")
	}

	var comment models.Comment
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		author, err := loadActor(tx, sess)
		if err != nil {
			return err
		}
		post, err := readablePost(tx, sess, postID)
		if err != nil {
			return err
		}

		var parent *models.Comment
		if parentID != nil {
			var p models.Comment
			err := tx.Where("id = ? AND post_id = ?", *parentID, post.ID).First(&p).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParentCommentNotFound
			}
			if err != nil {
				return err
			}
			parent = &p
		}

		now := s.stamp()
		comment = models.Comment{
			PostID:    post.ID,
			UserID:    author.ID,
			ParentID:  parentID,
			Content:   content,
			CreatedAt: now,
		}
		if err := tx.Omit("User").Create(&comment).Error; err != nil {
			return err
		}
		if err := adjustPoints(tx, author.ID, scoring.CommentAward); err != nil {
			return err
		}
		author.Points += scoring.CommentAward
		comment.User = *author

		if post.UserID != author.ID {
			msg := fmt.Sprintf("%s commented on your post %q", author.Nickname, post.Title)
			if _, err := createNotification(tx, post.UserID, msg, now); err != nil {
				return err
			}
		}
		if parent != nil && parent.UserID != author.ID && parent.UserID != post.UserID {
			msg := fmt.Sprintf("%s replied to your comment on %q", author.Nickname, post.Title)
			if _, err := createNotification(tx, parent.UserID, msg, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("comment created", zap.Uint("comment_id", comment.ID), zap.Uint("post_id", comment.PostID), zap.Uint("author_id", comment.UserID))
	return &comment, nil
}

// ListComments returns the live comments of a post in creation order.
func (s *ContentService) ListComments(ctx context.Context, sess Session, postID uint) ([]CommentView, error) {
	var views []CommentView
	err := s.read(ctx, func(db *gorm.DB) error {
		if _, err := readablePost(db, sess, postID); err != nil {
			return err
		}
		var comments []models.Comment
		if err := db.Preload("User").Where("post_id = ?", postID).Order("created_at ASC").Order("id ASC").Find(&comments).Error; err != nil {
			return err
		}
		views = make([]CommentView, 0, len(comments))
		for _, c := range comments {
			views = append(views, commentViewOf(c))
		}
		return nil
	})
	return views, err
}

// LikeComment adds one like to a comment.
func (s *ContentService) LikeComment(ctx context.Context, sess Session, commentID uint) (int64, error) {
	var likes int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if err := reactor(tx, sess); err != nil {
			return err
		}
		res := tx.Model(&models.Comment{}).Where("id = ?", commentID).UpdateColumn("likes", gorm.Expr("likes + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCommentNotFound
		}
		return tx.Model(&models.Comment{}).Where("id = ?", commentID).Select("likes").Scan(&likes).Error
	})
	return likes, err
}

// DeleteComment tombstones a comment. Only its author or an admin may delete it.
func (s *ContentService) DeleteComment(ctx context.Context, sess Session, commentID uint) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		actor, err := loadActor(tx, sess)
		if err != nil {
			return err
		}
		var c models.Comment
		if err := tx.First(&c, commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCommentNotFound
			}
			return err
		}
		if c.UserID != actor.ID && !actor.IsAdmin() {
			return ErrAccessDenied
		}
		return tx.Delete(&c).Error
	})
}
