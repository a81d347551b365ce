package caption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"captionrate/internal/logging"
	"captionrate/internal/metrics"

	"gorm.io/gorm"
)

// PageSize is the fixed window of captions a rating page holds.
const PageSize = 20

// MaxPage is the last page whose row window fits in an int.
const MaxPage = (math.MaxInt - PageSize) / PageSize

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidVote  = errors.New("invalid vote")
	ErrInvalidPage  = errors.New("invalid page")
	ErrMissingActor = errors.New("missing profile id")
)

type Service struct {
	DB      *gorm.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Range returns the inclusive row window for a page, matching range(from, to).
func Range(page int) (from, to int) {
	from = page * PageSize
	return from, from + PageSize - 1
}

// Page fetches one window of captions ordered by id ascending.
// On failure the error is logged and an empty slice is returned with it.
func (s *Service) Page(ctx context.Context, page int) ([]Caption, error) {
	if page < 0 || page > MaxPage {
		return []Caption{}, ErrInvalidPage
	}
	from, to := Range(page)

	var rows []Caption
	err := s.DB.WithContext(ctx).
		Order("id asc").
		Offset(from).
		Limit(to - from + 1).
		Find(&rows).Error
	if err != nil {
		s.logger().Error("caption page query failed", "page", page, "error", err)
		s.Metrics.QueryError("captions.page")
		return []Caption{}, fmt.Errorf("captions page %d: %w", page, err)
	}
	if rows == nil {
		rows = []Caption{}
	}
	return rows, nil
}

// ImageURLs resolves image ids to URLs. The returned map is always new.
func (s *Service) ImageURLs(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []Image
	err := s.DB.WithContext(ctx).
		Select("id", "url").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		s.logger().Error("image join query failed", "ids", len(ids), "error", err)
		s.Metrics.QueryError("images.join")
		return out, fmt.Errorf("images by id: %w", err)
	}

	for _, img := range rows {
		if img.URL != "" {
			out[img.ID] = img.URL
		}
	}
	return out, nil
}

// Examples lists caption examples, highest priority first.
func (s *Service) Examples(ctx context.Context) ([]Example, error) {
	var rows []Example
	err := s.DB.WithContext(ctx).
		Order("priority desc").
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		s.logger().Error("caption examples query failed", "error", err)
		s.Metrics.QueryError("caption_examples.list")
		return []Example{}, fmt.Errorf("caption examples: %w", err)
	}
	if rows == nil {
		rows = []Example{}
	}
	return rows, nil
}

// CastVote inserts one caption_votes row. Timestamps left zero are stamped now.
func (s *Service) CastVote(ctx context.Context, v Vote) error {
	if v.Value != 1 && v.Value != -1 {
		return ErrInvalidVote
	}
	if v.ProfileID == "" {
		return ErrMissingActor
	}
	if v.CaptionID == "" {
		return ErrNotFound
	}

	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.ModifiedAt.IsZero() {
		v.ModifiedAt = v.CreatedAt
	}

	if err := s.DB.WithContext(ctx).Create(&v).Error; err != nil {
		s.Metrics.QueryError("caption_votes.insert")
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// Get loads a caption by id.
func (s *Service) Get(ctx context.Context, id string) (Caption, error) {
	var c Caption
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Caption{}, ErrNotFound
		}
		return Caption{}, err
	}
	return c, nil
}

func (s *Service) logger() *slog.Logger {
	return logging.OrDefault(s.Logger)
}

// UniqueImageIDs collects the distinct image ids referenced by captions in first-seen order.
func UniqueImageIDs(captions []Caption) []string {
	seen := make(map[string]struct{}, len(captions))
	out := make([]string, 0, len(captions))
	for _, c := range captions {
		if c.ImageID == "" {
			continue
		}
		if _, ok := seen[c.ImageID]; ok {
			continue
		}
		seen[c.ImageID] = struct{}{}
		out = append(out, c.ImageID)
	}
	return out
}

// Displayable keeps only captions whose image resolved to a URL.
func Displayable(captions []Caption, urls map[string]string) []Caption {
	out := make([]Caption, 0, len(captions))
	for _, c := range captions {
		if urls[c.ImageID] != "" {
			out = append(out, c)
		}
	}
	return out
}
