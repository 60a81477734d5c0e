package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/rodeway/board/config"
	"github.com/rodeway/board/models"
	"github.com/rodeway/board/utils"
)

// board bundles the services over one throwaway SQLite file.
type board struct {
	db         *gorm.DB
	accounts   *AccountService
	content    *ContentService
	moderation *ModerationService
	stats      *StatsService
}

// tickingClock returns a clock that advances one second per call so creation order is observable.
func tickingClock(start time.Time) Clock {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newBoard(t *testing.T) *board {
	t.Helper()
	db, err := config.InitDatabase(config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "board.db"),
		LogLevel: "silent",
	}, models.All()...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	clock := WithClock(tickingClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	return &board{
		db:         db,
		accounts:   NewAccountService(db, utils.BcryptHasher{Cost: bcrypt.MinCost}, clock),
		content:    NewContentService(db, clock),
		moderation: NewModerationService(db, clock),
		stats:      NewStatsService(db, clock),
	}
}

func (b *board) register(t *testing.T, username string) Session {
	t.Helper()
	u, err := b.accounts.Register(context.Background(), RegisterInput{Username: username, Password: "secret-" + username})
	require.NoError(t, err)
	return Session{AccountID: u.ID, Username: u.Username, Role: u.Role}
}

func (b *board) admin(t *testing.T) Session {
	t.Helper()
	created, err := b.accounts.BootstrapAdmin(context.Background(), "admin", "admin-password")
	require.NoError(t, err)
	require.True(t, created)
	u, err := b.accounts.Authenticate(context.Background(), "admin", "admin-password")
	require.NoError(t, err)
	return Session{AccountID: u.ID, Username: u.Username, Role: u.Role}
}

func (b *board) points(t *testing.T, sess Session) int {
	t.Helper()
	u, err := b.accounts.Get(context.Background(), sess.AccountID)
	require.NoError(t, err)
	return u.Points
}

func (b *board) post(t *testing.T, sess Session, title string) *models.Post {
	t.Helper()
	p, err := b.content.CreatePost(context.Background(), sess, NewPost{Title: title, Content: "body of " + title})
	require.NoError(t, err)
	return p
}
