package db

import (
	"fmt"
	"strings"

	"captionrate/internal/auth"
	"captionrate/internal/caption"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database. Postgres goes through lib/pq as the database/sql driver.
func Connect(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.New(postgres.Config{DriverName: "postgres", DSN: dsn})
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

// Describe renders a DSN for logs with any password removed.
func Describe(driver, dsn string) string {
	if driver != "postgres" {
		return dsn
	}
	conninfo := dsn
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		parsed, err := pq.ParseURL(dsn)
		if err != nil {
			return "postgres (unparsable url)"
		}
		conninfo = parsed
	}

	fields := strings.Fields(conninfo)
	kept := fields[:0]
	for _, f := range fields {
		if strings.HasPrefix(f, "password=") {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.Profile{},
		&caption.Image{},
		&caption.Caption{},
		&caption.Vote{},
		&caption.Example{},
	); err != nil {
		return err
	}

	// One profile per provider identity
	if err := gdb.Exec(`create unique index if not exists uq_profiles_provider_subject on profiles(provider, provider_subject);`).Error; err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_captions_image on captions(image_id);`,
		`create index if not exists idx_votes_caption on caption_votes(caption_id);`,
		`create index if not exists idx_votes_profile_created on caption_votes(profile_id, created_datetime_utc);`,
		`create index if not exists idx_examples_priority on caption_examples(priority);`,
		`create index if not exists idx_images_profile_created on images(profile_id, created_datetime_utc);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
