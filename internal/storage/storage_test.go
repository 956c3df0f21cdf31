package storage

import (
	"io"
	"log/slog"
	"testing"

	"github.com/eval-hub/eval-dashboard/internal/config"
)

func TestNewStorageSelectsBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []struct {
		name     string
		database *config.DatabaseConfig
		want     string
		fails    bool
	}{
		{"memory", &config.DatabaseConfig{Backend: config.BackendMemory}, "memory", false},
		{"sqlite", &config.DatabaseConfig{Backend: config.BackendSQL, SQL: config.SQLDatabaseConfig{Driver: config.SQLITE_DRIVER, URL: ":memory:"}}, config.SQLITE_DRIVER, false},
		{"unknown", &config.DatabaseConfig{Backend: "bolt"}, "", true},
		{"missing", nil, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewStorage(&config.Config{Database: tc.database}, logger)
			if tc.fails {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStorage: %v", err)
			}
			defer s.Close()
			if s.Name() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, s.Name())
			}
		})
	}
}
