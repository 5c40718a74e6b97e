package mariadb

import (
	"context"
	"testing"
	"time"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name      string
		dsn       string
		collation string
		wantErr   bool
	}{
		{"default collation", "user:pass@tcp(mariadb:3306)/sightmatch", "utf8mb4_unicode_ci", false},
		{"explicit collation kept", "user:pass@tcp(mariadb:3306)/sightmatch?collation=utf8mb4_bin", "utf8mb4_bin", false},
		{"empty", "", "", true},
		{"malformed", "user:pass@tcp(mariadb:3306", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ParseDSN(tc.dsn)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDSN: %v", err)
			}
			if cfg.Collation != tc.collation {
				t.Errorf("collation = %q, want %q", cfg.Collation, tc.collation)
			}
			if cfg.Loc != time.UTC {
				t.Errorf("loc = %v, want UTC", cfg.Loc)
			}
			if cfg.DBName != "sightmatch" {
				t.Errorf("db = %q", cfg.DBName)
			}
		})
	}
}

func TestOpen_InvalidDSN(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("expected error for empty DSN")
	}
}
