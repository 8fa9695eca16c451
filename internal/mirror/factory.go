package mirror

import (
	"context"
	"fmt"

	"ingester-go/internal/config"
)

// NewRemoteFromConfig creates a Remote based on the mirror config type.
func NewRemoteFromConfig(ctx context.Context, cfg config.MirrorConfig) (Remote, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryRemote(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem mirror requires fs_root to be set")
		}
		return NewFileSystemRemote(cfg.FSRoot)
	case "s3":
		return NewS3Remote(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "":
		return nil, fmt.Errorf("no mirror configured")
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}
}
