// Package config reads server-wide settings from the environment.
//
// Every setting has a default, so the server runs with no environment at all.
// A .env file in the working directory, if present, is loaded first and never
// overrides variables that are already set.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings are the server-wide defaults. Per-call tool arguments override them.
type Settings struct {
	// LogLevel is "info" or "debug".
	LogLevel string

	// TimeoutMS is the default wall-clock budget for one sheet; 0 disables it.
	TimeoutMS int

	// OCRLanguage is the Tesseract language for header titles.
	OCRLanguage string

	// CacheLimit is the number of decoded images kept before the cache is
	// cleared; 0 disables the limit.
	CacheLimit int

	// IncludeImages returns diagnostic images unless a call says otherwise.
	IncludeImages bool

	// RemoveShadows and AdaptiveThreshold seed the per-call omr.Config.
	RemoveShadows     bool
	AdaptiveThreshold bool
}

// Load reads the settings from the environment.
func Load() Settings {
	return Settings{
		LogLevel:          strings.ToLower(getEnv("OMR_MCP_LOG_LEVEL", "info")),
		TimeoutMS:         getEnvAsInt("OMR_MCP_TIMEOUT_MS", 30000),
		OCRLanguage:       getEnv("OMR_MCP_OCR_LANG", "eng"),
		CacheLimit:        getEnvAsInt("OMR_MCP_CACHE_LIMIT", 32),
		IncludeImages:     getEnvAsBool("OMR_MCP_INCLUDE_IMAGES", false),
		RemoveShadows:     getEnvAsBool("OMR_MCP_REMOVE_SHADOWS", true),
		AdaptiveThreshold: getEnvAsBool("OMR_MCP_ADAPTIVE_THRESHOLD", false),
	}
}

// Debug reports whether debug logging is enabled.
func (s Settings) Debug() bool {
	return s.LogLevel == "debug"
}

// LoadDotEnv loads the given files (".env" when none are given) into the
// process environment. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
