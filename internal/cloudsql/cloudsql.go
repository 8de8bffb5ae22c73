package cloudsql

import (
	"fmt"
	"net/url"

	"github.com/gridcast/gridcast/internal/config"
)

// BuildDatabaseURL constructs a PostgreSQL connection string that works with both
// local development and Google Cloud SQL on Cloud Run.
//
// DATABASE_URL wins when set. Otherwise INSTANCE_CONNECTION_NAME selects the
// Unix socket Cloud Run mounts at /cloudsql/<instance>, and DB_USER and DB_NAME
// are required. An empty DB_PASSWORD means IAM authentication.
func BuildDatabaseURL(cfg config.DatabaseConfig) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}

	if cfg.InstanceConnectionName == "" {
		return "", fmt.Errorf("neither DATABASE_URL nor INSTANCE_CONNECTION_NAME is set")
	}

	if cfg.User == "" || cfg.Name == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	socketPath := socketPath(cfg.InstanceConnectionName)

	if cfg.Password != "" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			socketPath, cfg.User, cfg.Password, cfg.Name), nil
	}

	return fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable",
		socketPath, cfg.User, cfg.Name), nil
}

// ConnectionSummary returns loggable connection details with credentials removed.
func ConnectionSummary(cfg config.DatabaseConfig) map[string]string {
	summary := make(map[string]string)

	switch {
	case cfg.URL != "":
		summary["connection_type"] = "direct"
		summary["database_url"] = redactPassword(cfg.URL)
	case cfg.InstanceConnectionName != "":
		summary["connection_type"] = "cloud_sql"
		summary["instance"] = cfg.InstanceConnectionName
		summary["user"] = cfg.User
		summary["database"] = cfg.Name
		summary["socket_path"] = socketPath(cfg.InstanceConnectionName)
	default:
		summary["connection_type"] = "none"
	}

	return summary
}

func socketPath(instance string) string {
	return "/cloudsql/" + instance
}

// redactPassword masks the password of a postgres:// URL. Key/value DSNs and
// unparsable strings are reduced to a placeholder.
func redactPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.Scheme == "" {
		return "[redacted]"
	}
	return u.Redacted()
}
