package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rodeway/board/models"
	"github.com/rodeway/board/storage"
)

// ErrFileTooLarge is returned when an upload exceeds the configured size.
var ErrFileTooLarge = errors.New("file too large")

// UploadService writes attachments and profile images to the blob store and keeps a record of each.
type UploadService struct {
	base
	blobs    storage.BlobStore
	maxBytes int64
}

// NewUploadService creates an UploadService that refuses files larger than maxBytes.
func NewUploadService(db *gorm.DB, blobs storage.BlobStore, maxBytes int64, opts ...Option) *UploadService {
	return &UploadService{base: newBase(db, opts), blobs: blobs, maxBytes: maxBytes}
}

// Upload stores an attachment for the session's account and returns its record.
// The returned handle is what posts carry in their attachment list.
func (s *UploadService) Upload(ctx context.Context, sess Session, filename, contentType string, r io.Reader) (*models.UploadedFile, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, invalid("read upload: %v", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, invalid("empty file")
	}
	return s.store(ctx, sess, "attachments", filename, contentType, data)
}

// SetAvatar stores an already normalized JPEG profile image and points the account at it.
func (s *UploadService) SetAvatar(ctx context.Context, sess Session, jpeg []byte) (*models.UploadedFile, error) {
	rec, err := s.store(ctx, sess, "avatars", "avatar.jpg", "image/jpeg", jpeg)
	if err != nil {
		return nil, err
	}
	var previous string
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		owner, err := loadAccount(tx, sess.AccountID)
		if err != nil {
			return err
		}
		previous = owner.AvatarHandle
		return tx.Model(&models.User{}).Where("id = ?", owner.ID).Update("avatar_handle", rec.Handle).Error
	})
	if err != nil {
		return nil, err
	}
	if previous != "" {
		if err := s.blobs.Delete(ctx, previous); err != nil {
			s.log.Warn("old avatar not removed", zap.String("handle", previous), zap.Error(err))
		}
	}
	return rec, nil
}

func (s *UploadService) store(ctx context.Context, sess Session, folder, filename, contentType string, data []byte) (*models.UploadedFile, error) {
	now := s.stamp()
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	rec := models.UploadedFile{
		Handle:      storage.NewHandle(folder, filename, now),
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   now,
	}

	err := s.inTx(ctx, func(tx *gorm.DB) error {
		owner, err := loadActor(tx, sess)
		if err != nil {
			return err
		}
		rec.UserID = owner.ID
		if err := s.blobs.Put(ctx, rec.Handle, bytes.NewReader(data), contentType); err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("blob stored", zap.String("handle", rec.Handle), zap.Int64("size", rec.Size), zap.Uint("owner_id", rec.UserID))
	return &rec, nil
}

// Open returns the bytes and the recorded content type of a stored blob.
func (s *UploadService) Open(ctx context.Context, handle string) (io.ReadCloser, string, error) {
	var rec models.UploadedFile
	err := s.db.WithContext(ctx).Where("handle = ?", handle).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", storage.ErrBlobNotFound
	}
	if err != nil {
		return nil, "", classify(err)
	}
	rc, err := s.blobs.Get(ctx, rec.Handle)
	if err != nil {
		return nil, "", err
	}
	return rc, rec.ContentType, nil
}
