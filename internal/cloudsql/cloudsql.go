// Package cloudsql resolves the PostgreSQL connection string for local
// development (DATABASE_URL) and for Cloud Run with a mounted Cloud SQL
// socket (INSTANCE_CONNECTION_NAME, DB_USER, DB_PASSWORD, DB_NAME).
package cloudsql

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

const socketRoot = "/cloudsql"

// BuildDatabaseURL constructs a PostgreSQL connection string. DATABASE_URL
// wins when set; otherwise a Unix socket DSN is built for the Cloud SQL
// instance. An empty DB_PASSWORD selects IAM authentication.
func BuildDatabaseURL() (string, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL, nil
	}

	instance := os.Getenv("INSTANCE_CONNECTION_NAME")
	if instance == "" {
		return "", fmt.Errorf("neither DATABASE_URL nor INSTANCE_CONNECTION_NAME is set")
	}

	user := os.Getenv("DB_USER")
	name := os.Getenv("DB_NAME")
	if user == "" || name == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	parts := []string{
		"host=" + socketPath(instance),
		"user=" + user,
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		parts = append(parts, "password="+password)
	}
	parts = append(parts, "dbname="+name, "sslmode="+sslMode)

	return strings.Join(parts, " "), nil
}

// ConnectionInfo describes the resolved connection without secrets.
type ConnectionInfo struct {
	Type       string `json:"connection_type"`
	URL        string `json:"database_url,omitempty"`
	Instance   string `json:"instance,omitempty"`
	User       string `json:"user,omitempty"`
	Database   string `json:"database,omitempty"`
	SocketPath string `json:"socket_path,omitempty"`
}

// GetConnectionInfo returns connection details safe for logging.
func GetConnectionInfo() ConnectionInfo {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return ConnectionInfo{Type: "direct", URL: redactPassword(dbURL)}
	}
	if instance := os.Getenv("INSTANCE_CONNECTION_NAME"); instance != "" {
		return ConnectionInfo{
			Type:       "cloud_sql",
			Instance:   instance,
			User:       os.Getenv("DB_USER"),
			Database:   os.Getenv("DB_NAME"),
			SocketPath: socketPath(instance),
		}
	}
	return ConnectionInfo{Type: "none"}
}

func socketPath(instance string) string {
	return socketRoot + "/" + instance
}

// redactPassword masks the password of a postgres:// URL. Other strings are
// returned unchanged.
func redactPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	if _, ok := u.User.Password(); !ok {
		return connStr
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return u.String()
}
