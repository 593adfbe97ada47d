package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.InboxDir == "" {
		return errors.New("paths.inbox_dir must be set")
	}
	if c.Paths.ProcessedDir == "" {
		return errors.New("paths.processed_dir must be set")
	}
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.InboxDir == c.Paths.ProcessedDir {
		return errors.New("paths.inbox_dir and paths.processed_dir must differ")
	}
	if err := ensurePositiveMap(map[string]int{
		"ingest.debounce_seconds":     c.Ingest.DebounceSeconds,
		"server.max_upload_mib":       c.Server.MaxUploadMiB,
		"server.max_files_per_upload": c.Server.MaxFilesPerUpload,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
