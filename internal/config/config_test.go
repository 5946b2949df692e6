package config

import (
	"path/filepath"
	"testing"
)

func TestReadConfigCreatesTemplate(t *testing.T) {
	Path = filepath.Join(t.TempDir(), "config.json")
	initialized = false

	config, err := ReadConfig()
	if err != nil {
		t.Fatalf("Error reading configuration file: %v", err)
	}
	if config.Store != StoreMemory {
		t.Errorf("Expected default store %q, got %q", StoreMemory, config.Store)
	}
	if config.AppPort != 7878 {
		t.Errorf("Expected default port 7878, got %d", config.AppPort)
	}

	// the template file must now exist and parse
	initialized = false
	reread, err := ReadConfig()
	if err != nil {
		t.Fatalf("Error re-reading configuration file: %v", err)
	}
	if reread.AppName != config.AppName {
		t.Errorf("Expected app name %q, got %q", config.AppName, reread.AppName)
	}
}
