// Package services implements the board core: accounts, content, moderation and visit statistics.
// Every operation runs as one database transaction and receives the caller's Session explicitly.
package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rodeway/board/models"
)

// Clock supplies creation timestamps.
type Clock func() time.Time

// Session identifies the caller of an operation. The zero value is an anonymous visitor.
type Session struct {
	AccountID uint
	Username  string
	Role      string
}

// Anonymous is the session of a caller that is not logged in.
var Anonymous = Session{}

// Authenticated reports whether the session belongs to an account.
func (s Session) Authenticated() bool {
	return s.AccountID != 0
}

// Option customizes a service.
type Option func(*options)

type options struct {
	now      Clock
	log      *zap.Logger
	pageSize int
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) { o.now = c }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithPageSize sets the listing page size used when a query does not name one.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:      time.Now,
		log:      zap.NewNop(),
		pageSize: 10,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) stamp() time.Time {
	return o.now().UTC()
}

type base struct {
	db *gorm.DB
	options
}

func newBase(db *gorm.DB, opts []Option) base {
	return base{db: db, options: newOptions(opts)}
}

// inTx runs fn in a transaction and classifies its error.
func (b base) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return classify(b.db.WithContext(ctx).Transaction(fn))
}

// read runs fn against a context-bound handle without a transaction.
func (b base) read(ctx context.Context, fn func(db *gorm.DB) error) error {
	return classify(fn(b.db.WithContext(ctx)))
}

func loadAccount(tx *gorm.DB, id uint) (*models.User, error) {
	if id == 0 {
		return nil, ErrAccountNotFound
	}
	var u models.User
	if err := tx.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &u, nil
}

// loadActor loads the session's account and refuses banned accounts.
func loadActor(tx *gorm.DB, sess Session) (*models.User, error) {
	if !sess.Authenticated() {
		return nil, ErrAccessDenied
	}
	u, err := loadAccount(tx, sess.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, err
	}
	if u.IsBanned {
		return nil, ErrAccountBanned
	}
	return u, nil
}

// requireAdmin checks the stored role rather than the session's, which may be stale.
func requireAdmin(tx *gorm.DB, sess Session) (*models.User, error) {
	u, err := loadActor(tx, sess)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, ErrAccessDenied
	}
	return u, nil
}

// isAdmin reports whether the session's stored account is an admin; anonymous and unknown sessions are not.
func isAdmin(tx *gorm.DB, sess Session) (bool, error) {
	if !sess.Authenticated() {
		return false, nil
	}
	var role string
	err := tx.Model(&models.User{}).Where("id = ?", sess.AccountID).Select("role").Scan(&role).Error
	if err != nil {
		return false, err
	}
	return role == models.RoleAdmin, nil
}

// adjustPoints applies delta atomically and never lets points drop below zero.
func adjustPoints(tx *gorm.DB, accountID uint, delta int) error {
	res := tx.Model(&models.User{}).Where("id = ?", accountID).
		UpdateColumn("points", gorm.Expr("CASE WHEN points + ? < 0 THEN 0 ELSE points + ? END", delta, delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// Some drivers report changed rather than matched rows, so an unchanged balance reads as zero.
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", accountID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Page is one page of an ordered listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func newPage[T any](items []T, page, size int, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}
}
