// Package config loads the tunables that size this decoder's buffered
// reader and pools, the same optional-.env-file-then-defaults pattern the
// teacher project's main.go uses for its own startup configuration.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const envFile = ".env.vorbisdec"

// Config holds every environment-tunable knob the decoder core exposes.
type Config struct {
	BufReaderWindow     int
	BufReaderMax        int
	BufferPoolSize      int
	BufferPoolSlotBytes int
	NodePoolSize        int
	DefaultSeekPreroll  int
}

// Load mirrors main.go's loadConfigs: attempt to load an optional .env
// file, silently proceed if it's absent, then fill each field from the
// environment with a documented default.
func Load() *Config {
	if err := godotenv.Load(envFile); err != nil {
		// No .env.vorbisdec present -- defaults below still apply.
		_ = err
	}

	return &Config{
		BufReaderWindow:     intEnv("VORBISDEC_BUFREADER_WINDOW", 64*1024),
		BufReaderMax:        intEnv("VORBISDEC_BUFREADER_MAX", 4*1024*1024),
		BufferPoolSize:      intEnv("VORBISDEC_BUFFERPOOL_SIZE", 8),
		BufferPoolSlotBytes: intEnv("VORBISDEC_BUFFERPOOL_SLOT_BYTES", 8192),
		NodePoolSize:        intEnv("VORBISDEC_NODEPOOL_SIZE", 4096),
		DefaultSeekPreroll:  intEnv("VORBISDEC_SEEK_PREROLL", 2),
	}
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
