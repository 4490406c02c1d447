package config

import (
	"fmt"
	"os"
)

func Template() string {
	return defaultTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(defaultTemplate), 0o600)
}

const defaultTemplate = `[limits]
max_file_bytes = 268435456
max_meta_depth = 32
max_meta_entries = 1048576

[server]
name = "hxad"
addr = ":9300"
cors_origins = ["http://localhost:3000"]
`
