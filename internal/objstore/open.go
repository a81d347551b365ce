package objstore

import (
	"fmt"

	"captionrate/internal/config"
)

// Open builds the bucket selected by the storage config.
func Open(cfg config.Storage) (Bucket, error) {
	switch cfg.Driver {
	case "local":
		return NewLocal(cfg.LocalDir, cfg.PublicURL)
	case "sftp":
		return &SFTP{
			Host:     cfg.SFTPHost,
			Port:     cfg.SFTPPort,
			User:     cfg.SFTPUser,
			Password: cfg.SFTPPassword,
			KeyFile:  cfg.SFTPKeyFile,
			BasePath: cfg.SFTPPath,
			BaseURL:  cfg.PublicURL,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
