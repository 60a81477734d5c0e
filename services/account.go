package services

import (
	"context"
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

// PasswordHasher is the one-way credential function. Implementations must salt and be slow.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// AccountService owns identities, credentials, roles, points and bans.
type AccountService struct {
	base
	hasher PasswordHasher
}

// NewAccountService creates an AccountService.
func NewAccountService(db *gorm.DB, hasher PasswordHasher, opts ...Option) *AccountService {
	return &AccountService{base: newBase(db, opts), hasher: hasher}
}

// RegisterInput carries the fields of a new local account.
type RegisterInput struct {
	Username string
	Password string
	Nickname string
}

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 3
	maxNicknameLen = 64
)

func validUsername(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < minUsernameLen || n > maxUsernameLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
		case r >= 0x4E00 && r <= 0x9FFF: // CJK unified ideographs
		default:
			return false
		}
	}
	return true
}

// Register creates a user account. The password is hashed before the transaction starts.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if !validUsername(username) {
		return nil, invalid("username must be %d-%d letters, digits, '-' or '_'", minUsernameLen, maxUsernameLen)
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return nil, invalid("password must be at least %d characters", minPasswordLen)
	}
	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" {
		nickname = username
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLen {
		return nil, invalid("nickname must be at most %d characters", maxNicknameLen)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     username,
		PasswordHash: hash,
		Nickname:     nickname,
		Role:         models.RoleUser,
		CreatedAt:    s.stamp(),
	}
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		return createAccount(tx, &user)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account registered", zap.Uint("account_id", user.ID), zap.String("username", user.Username))
	return &user, nil
}

func createAccount(tx *gorm.DB, user *models.User) error {
	var n int64
	if err := tx.Unscoped().Model(&models.User{}).Where("username = ?", user.Username).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicateUsername
	}
	if err := tx.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

// Authenticate checks a username/password pair. Banned accounts fail even with the right password.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.read(ctx, func(db *gorm.DB) error {
		err := db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCredentials
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.log.Info("login rejected", zap.String("username", username), zap.String("reason", "unknown user"))
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.log.Info("login rejected", zap.String("username", username), zap.String("reason", "bad password"))
		return nil, ErrInvalidCredentials
	}
	if user.IsBanned {
		s.log.Info("login rejected", zap.String("username", username), zap.String("reason", "banned"))
		return nil, ErrAccountBanned
	}
	return &user, nil
}

// Get returns the account by id.
func (s *AccountService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user *models.User
	err := s.read(ctx, func(db *gorm.DB) error {
		u, err := loadAccount(db, id)
		user = u
		return err
	})
	return user, err
}

// Profile is the public view of an account together with its derived standing.
type Profile struct {
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	Nickname     string `json:"nickname"`
	Role         string `json:"role"`
	IsBanned     bool   `json:"is_banned"`
	AvatarHandle string `json:"avatar_handle,omitempty"`
	Signature    string `json:"signature,omitempty"`
	scoring.Standing
	CreatedAt time.Time `json:"created_at"`
}

// ProfileOf converts an account into its public profile.
func ProfileOf(u *models.User) Profile {
	return Profile{
		ID:           u.ID,
		Username:     u.Username,
		Nickname:     u.Nickname,
		Role:         u.Role,
		IsBanned:     u.IsBanned,
		AvatarHandle: u.AvatarHandle,
		Signature:    u.Signature,
		Standing:     scoring.Of(u.Points),
		CreatedAt:    u.CreatedAt,
	}
}

// Profile returns the public profile of an account.
func (s *AccountService) Profile(ctx context.Context, id uint) (*Profile, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p := ProfileOf(u)
	return &p, nil
}

// SetNickname overwrites the nickname. Setting the same value twice is a no-op.
func (s *AccountService) SetNickname(ctx context.Context, id uint, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || utf8.RuneCountInString(nickname) > maxNicknameLen {
		return invalid("nickname must be 1-%d characters", maxNicknameLen)
	}
	return s.updateColumn(ctx, id, "nickname", nickname)
}

// SetSignature overwrites the profile signature; an empty value clears it.
func (s *AccountService) SetSignature(ctx context.Context, id uint, signature string) error {
	signature = strings.TrimSpace(signature)
	if utf8.RuneCountInString(signature) > 255 {
		signature = string([]rune(signature)[:255])
	}
	return s.updateColumn(ctx, id, "signature", signature)
}

func (s *AccountService) updateColumn(ctx context.Context, id uint, column string, value interface{}) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		if _, err := loadAccount(tx, id); err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", id).Update(column, value).Error
	})
}

// AdjustPoints adds delta to the account's points, clamping at zero, and returns the new total.
func (s *AccountService) AdjustPoints(ctx context.Context, id uint, delta int) (int, error) {
	var points int
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if err := adjustPoints(tx, id, delta); err != nil {
			return err
		}
		u, err := loadAccount(tx, id)
		if err != nil {
			return err
		}
		points = u.Points
		return nil
	})
	return points, err
}

// Ban blocks an account from authenticating. Only admins may ban, and admins cannot be banned.
func (s *AccountService) Ban(ctx context.Context, actor Session, id uint) error {
	return s.setBanned(ctx, actor, id, true)
}

// Unban lifts a ban.
func (s *AccountService) Unban(ctx context.Context, actor Session, id uint) error {
	return s.setBanned(ctx, actor, id, false)
}

func (s *AccountService) setBanned(ctx context.Context, actor Session, id uint, banned bool) error {
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if _, err := requireAdmin(tx, actor); err != nil {
			return err
		}
		target, err := loadAccount(tx, id)
		if err != nil {
			return err
		}
		if target.IsAdmin() && banned {
			return ErrAccessDenied
		}
		return tx.Model(&models.User{}).Where("id = ?", id).Update("is_banned", banned).Error
	})
	if err == nil {
		s.log.Info("account ban changed", zap.Uint("account_id", id), zap.Bool("banned", banned), zap.Uint("actor_id", actor.AccountID))
	}
	return err
}

// BootstrapAdmin creates the single admin account when none exists yet.
// It reports whether an account was created. The password must come from configuration.
func (s *AccountService) BootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	var exists bool
	err := s.read(ctx, func(db *gorm.DB) error {
		var n int64
		if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&n).Error; err != nil {
			return err
		}
		exists = n > 0
		return nil
	})
	if err != nil || exists {
		return false, err
	}
	if password == "" {
		return false, ErrBootstrapCredential
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	admin := models.User{
		Username:     strings.TrimSpace(username),
		PasswordHash: hash,
		Nickname:     strings.TrimSpace(username),
		Role:         models.RoleAdmin,
		CreatedAt:    s.stamp(),
	}
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			exists = true
			return nil
		}
		return createAccount(tx, &admin)
	})
	if errors.Is(err, ErrDuplicateUsername) {
		s.log.Error("admin bootstrap skipped: username already belongs to a regular account", zap.String("username", admin.Username))
		return false, fmt.Errorf("admin username %q is taken by a regular account: %w", admin.Username, err)
	}
	if err != nil || exists {
		return false, err
	}
	s.log.Info("admin account bootstrapped", zap.Uint("account_id", admin.ID), zap.String("username", admin.Username))
	return true, nil
}
