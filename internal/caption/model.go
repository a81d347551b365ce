package caption

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Image is a row of the images table. URL is the public address clients render.
type Image struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	URL          string    `gorm:"type:text;not null" json:"url"`
	ThumbnailURL *string   `gorm:"type:text" json:"thumbnail_url,omitempty"`
	ProfileID    *string   `gorm:"size:36;index" json:"profile_id,omitempty"`
	ObjectKey    *string   `gorm:"type:text" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_datetime_utc;autoCreateTime" json:"created_datetime_utc"`
	ModifiedAt   time.Time `gorm:"column:modified_datetime_utc;autoUpdateTime" json:"modified_datetime_utc"`
}

func (Image) TableName() string { return "images" }

func (i *Image) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Caption pairs display text with a referenced image.
type Caption struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ImageID    string    `gorm:"size:36;not null;index" json:"image_id"`
	Content    string    `gorm:"type:text;not null;default:''" json:"content"`
	Caption    string    `gorm:"type:text;not null;default:''" json:"caption"`
	CreatedAt  time.Time `gorm:"column:created_datetime_utc;autoCreateTime" json:"created_datetime_utc"`
	ModifiedAt time.Time `gorm:"column:modified_datetime_utc;autoUpdateTime" json:"modified_datetime_utc"`
}

func (Caption) TableName() string { return "captions" }

func (c *Caption) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Vote is append-only; one row per swipe or button press.
type Vote struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	CaptionID  string    `gorm:"size:36;not null;index" json:"caption_id"`
	ProfileID  string    `gorm:"size:36;not null;index" json:"profile_id"`
	Value      int       `gorm:"column:vote_value;not null" json:"vote_value"`
	CreatedAt  time.Time `gorm:"column:created_datetime_utc;not null" json:"created_datetime_utc"`
	ModifiedAt time.Time `gorm:"column:modified_datetime_utc;not null" json:"modified_datetime_utc"`
}

func (Vote) TableName() string { return "caption_votes" }

func (v *Vote) BeforeCreate(*gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// Example is a curated caption shown on the table tab.
type Example struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	ImageDescription string    `gorm:"type:text;not null;default:''" json:"image_description"`
	Caption          string    `gorm:"type:text;not null;default:''" json:"caption"`
	Explanation      string    `gorm:"type:text;not null;default:''" json:"explanation"`
	Priority         int       `gorm:"not null;default:0;index" json:"priority"`
	ImageID          *string   `gorm:"size:36" json:"image_id,omitempty"`
	CreatedAt        time.Time `gorm:"column:created_datetime_utc;autoCreateTime" json:"created_datetime_utc"`
	ModifiedAt       time.Time `gorm:"column:modified_datetime_utc;autoUpdateTime" json:"modified_datetime_utc"`
}

func (Example) TableName() string { return "caption_examples" }

func (e *Example) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
