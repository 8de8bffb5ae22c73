package cloudsql

import (
	"strings"
	"testing"

	"github.com/gridcast/gridcast/internal/config"
)

func TestBuildDatabaseURL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DatabaseConfig
		want    string
		wantErr bool
	}{
		{
			name: "direct URL wins",
			cfg:  config.DatabaseConfig{URL: "postgres://u:p@localhost/gridcast", InstanceConnectionName: "p:r:i"},
			want: "postgres://u:p@localhost/gridcast",
		},
		{
			name: "cloud sql with password",
			cfg:  config.DatabaseConfig{InstanceConnectionName: "proj:us:db", User: "svc", Password: "pw", Name: "gridcast"},
			want: "host=/cloudsql/proj:us:db user=svc password=pw dbname=gridcast sslmode=disable",
		},
		{
			name: "cloud sql IAM",
			cfg:  config.DatabaseConfig{InstanceConnectionName: "proj:us:db", User: "svc", Name: "gridcast"},
			want: "host=/cloudsql/proj:us:db user=svc dbname=gridcast sslmode=disable",
		},
		{name: "nothing configured", cfg: config.DatabaseConfig{}, wantErr: true},
		{name: "missing user", cfg: config.DatabaseConfig{InstanceConnectionName: "proj:us:db", Name: "gridcast"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildDatabaseURL(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnectionSummaryRedactsPassword(t *testing.T) {
	summary := ConnectionSummary(config.DatabaseConfig{URL: "postgres://gridcast:s3cret@db:5432/gridcast"})

	if summary["connection_type"] != "direct" {
		t.Fatalf("unexpected connection type %q", summary["connection_type"])
	}
	if strings.Contains(summary["database_url"], "s3cret") {
		t.Fatalf("password leaked into summary: %q", summary["database_url"])
	}
	if !strings.Contains(summary["database_url"], "db:5432/gridcast") {
		t.Errorf("host lost in summary: %q", summary["database_url"])
	}
}

func TestConnectionSummaryCloudSQL(t *testing.T) {
	summary := ConnectionSummary(config.DatabaseConfig{InstanceConnectionName: "p:r:i", User: "svc", Password: "pw", Name: "gc"})

	if summary["socket_path"] != "/cloudsql/p:r:i" {
		t.Errorf("unexpected socket path %q", summary["socket_path"])
	}
	for key, value := range summary {
		if value == "pw" {
			t.Fatalf("password exposed under %q", key)
		}
	}
}
