package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"time"

	"captionrate/internal/caption"
	"captionrate/internal/logging"
	"captionrate/internal/metrics"
	"captionrate/internal/objstore"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"gorm.io/gorm"
)

const (
	DefaultMaxBytes = 10 << 20
	thumbnailEdge   = 300
	thumbnailSuffix = ".thumb.jpg"
)

var (
	ErrNotFound  = errors.New("upload not found")
	ErrForbidden = errors.New("upload belongs to another profile")
	ErrNotImage  = errors.New("file is not a supported image")
	ErrTooLarge  = errors.New("file too large")
)

var extensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
}

type Service struct {
	DB       *gorm.DB
	Bucket   objstore.Bucket
	MaxBytes int64
	Logger   *slog.Logger
	Metrics  *metrics.Metrics

	Now   func() time.Time
	NewID func() string
}

// Upload stores the file under <profileID>/<unix-millis>-<id8><ext>, writes a
// thumbnail beside it, then inserts the images row that points at the public URL.
// The random id8 part keeps two uploads in the same millisecond apart.
func (s *Service) Upload(ctx context.Context, profileID, filename string, r io.Reader) (caption.Image, error) {
	log := logging.OrDefault(s.Logger).With("profile_id", profileID, "filename", filename)

	data, err := s.readLimited(r)
	if err != nil {
		s.Metrics.Upload("rejected")
		return caption.Image{}, err
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	ext, ok := extensions[format]
	if err != nil || !ok {
		s.Metrics.Upload("rejected")
		return caption.Image{}, ErrNotImage
	}

	key := s.objectKey(profileID, ext)
	if err := s.Bucket.Put(ctx, key, bytes.NewReader(data), "image/"+format); err != nil {
		log.Error("object upload failed", "key", key, "error", err)
		s.Metrics.Upload("failed")
		return caption.Image{}, fmt.Errorf("store object: %w", err)
	}

	img := caption.Image{
		URL:       s.Bucket.URL(key),
		ProfileID: &profileID,
		ObjectKey: &key,
	}

	thumbKey := key + thumbnailSuffix
	if thumb, err := thumbnail(data); err != nil {
		log.Warn("thumbnail skipped", "key", key, "error", err)
	} else if err := s.Bucket.Put(ctx, thumbKey, bytes.NewReader(thumb), "image/jpeg"); err != nil {
		log.Warn("thumbnail upload failed", "key", thumbKey, "error", err)
	} else {
		u := s.Bucket.URL(thumbKey)
		img.ThumbnailURL = &u
	}

	if err := s.DB.WithContext(ctx).Create(&img).Error; err != nil {
		log.Error("image row insert failed, removing objects", "key", key, "error", err)
		s.removeObjects(context.WithoutCancel(ctx), img)
		s.Metrics.Upload("failed")
		return caption.Image{}, fmt.Errorf("insert image: %w", err)
	}

	log.Info("image uploaded", "image_id", img.ID, "key", key)
	s.Metrics.Upload("ok")
	return img, nil
}

// Delete removes the metadata row and its object together. When the object
// cannot be removed the row delete is rolled back. The thumbnail goes after
// commit so a failure there never leaves the row pointing at a missing file.
func (s *Service) Delete(ctx context.Context, profileID, imageID string) error {
	log := logging.OrDefault(s.Logger)

	var img caption.Image
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", imageID).First(&img).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if img.ProfileID == nil || *img.ProfileID != profileID {
			return ErrForbidden
		}

		if err := tx.Delete(&img).Error; err != nil {
			return err
		}

		if img.ObjectKey == nil {
			return nil
		}
		return s.deleteObject(ctx, *img.ObjectKey)
	})
	if err != nil {
		return err
	}

	if img.ObjectKey != nil && img.ThumbnailURL != nil {
		thumbKey := *img.ObjectKey + thumbnailSuffix
		if err := s.deleteObject(context.WithoutCancel(ctx), thumbKey); err != nil {
			log.Warn("orphaned thumbnail", "key", thumbKey, "error", err)
		}
	}

	log.Info("image deleted", "profile_id", profileID, "image_id", imageID)
	return nil
}

// Mine lists the profile's uploads, newest first.
func (s *Service) Mine(ctx context.Context, profileID string) ([]caption.Image, error) {
	var rows []caption.Image
	err := s.DB.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_datetime_utc desc").
		Order("id desc").
		Find(&rows).Error
	if err != nil {
		s.Metrics.QueryError("images.mine")
		return []caption.Image{}, err
	}
	if rows == nil {
		rows = []caption.Image{}
	}
	return rows, nil
}

func (s *Service) readLimited(r io.Reader) ([]byte, error) {
	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, ErrNotImage
	}
	return data, nil
}

func (s *Service) deleteObject(ctx context.Context, key string) error {
	err := s.Bucket.Delete(ctx, key)
	if err == nil || errors.Is(err, objstore.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("delete object %s: %w", key, err)
}

func (s *Service) removeObjects(ctx context.Context, img caption.Image) {
	if img.ObjectKey == nil {
		return
	}
	if img.ThumbnailURL != nil {
		_ = s.deleteObject(ctx, *img.ObjectKey+thumbnailSuffix)
	}
	if err := s.deleteObject(ctx, *img.ObjectKey); err != nil {
		logging.OrDefault(s.Logger).Error("orphaned object", "key", *img.ObjectKey, "error", err)
	}
}

func (s *Service) objectKey(profileID, ext string) string {
	id := uuid.NewString()
	if s.NewID != nil {
		id = s.NewID()
	}
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s/%d-%s%s", profileID, s.now().UnixMilli(), id, ext)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func thumbnail(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := resize.Thumbnail(thumbnailEdge, thumbnailEdge, src, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
