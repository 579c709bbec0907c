package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// DataDirectories defines the paths that need to exist for the service to run.
type DataDirectories struct {
	Base   string // Base data directory (default: ./data)
	SQLite string // SQLite database path
}

// EnsureDataDirectories creates the data directory and the SQLite parent
// directory, then checks both are writable.
func EnsureDataDirectories(dirs DataDirectories, sugar *zap.SugaredLogger) error {
	toCreate := []string{dirs.Base}
	if dirs.SQLite != "" && dirs.SQLite != ":memory:" {
		if parent := filepath.Dir(dirs.SQLite); parent != dirs.Base {
			toCreate = append(toCreate, parent)
		}
	}

	for _, dir := range toCreate {
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for %s: %w", dir, err)
		}

		if err := os.MkdirAll(absPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w\n"+
				"  Remediation: Ensure the parent directory exists and is writable\n"+
				"  For Docker: Check volume mount permissions\n"+
				"  For bare metal: Run 'mkdir -p %s && chmod 755 %s'", dir, err, absPath, absPath)
		}

		testFile := filepath.Join(absPath, ".iochunt_write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			return fmt.Errorf("directory %s is not writable: %w\n"+
				"  Remediation: Check file system permissions\n"+
				"  For Docker: Ensure volume is mounted with write access\n"+
				"  For bare metal: Run 'chmod -R u+w %s'", dir, err, absPath)
		}
		_ = os.Remove(testFile)

		sugar.Infow("Data directory ready", "path", absPath)
	}

	return nil
}

// ClassifyConnectionError turns a backend dial failure into an operator-facing
// message. service names the backend (ClickHouse, MongoDB, Redis, NATS).
func ClassifyConnectionError(service string, err error, addr string) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("Connection to %s at %s timed out.\n"+
			"  Possible causes:\n"+
			"  - %s is starting up (wait and retry)\n"+
			"  - Network latency or firewall blocking the connection\n"+
			"  Remediation:\n"+
			"  - Verify network connectivity: nc -zv %s", service, addr, service, addr)
	}

	refused := errors.Is(err, syscall.ECONNREFUSED) ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "actively refused")
	if refused {
		return fmt.Sprintf("Connection refused by %s at %s.\n"+
			"  This usually means %s is not running.\n"+
			"  Remediation:\n"+
			"  - Start it: docker compose up -d %s\n"+
			"  - Verify the address is correct in config.yaml", service, addr, service, strings.ToLower(service))
	}

	if strings.Contains(errStr, "no such host") || strings.Contains(errStr, "lookup") {
		return fmt.Sprintf("Cannot resolve hostname in %s address %s.\n"+
			"  Remediation:\n"+
			"  - Verify the hostname is correct\n"+
			"  - Check DNS configuration\n"+
			"  - Try using IP address (127.0.0.1) instead of hostname", service, addr)
	}

	if strings.Contains(errStr, "authentication") || strings.Contains(errStr, "password") || strings.Contains(errStr, "denied") {
		return fmt.Sprintf("Authentication failed for %s at %s.\n"+
			"  Remediation:\n"+
			"  - Verify credentials in config.yaml or the secrets provider\n"+
			"  - Check IOCHUNT_* environment overrides", service, addr)
	}

	return fmt.Sprintf("Failed to connect to %s at %s: %v\n"+
		"  Remediation:\n"+
		"  - Ensure %s is running and accessible\n"+
		"  - Verify network connectivity", service, addr, err, service)
}

// ClassifySQLiteError provides specific error messages based on the type of SQLite failure.
func ClassifySQLiteError(err error, dbPath string) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())
	absPath, _ := filepath.Abs(dbPath)
	parentDir := filepath.Dir(absPath)

	switch {
	case strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "access denied"):
		return fmt.Sprintf("Permission denied accessing SQLite database at %s.\n"+
			"  Remediation:\n"+
			"  - Check file permissions: ls -la %s\n"+
			"  - Check directory permissions: ls -la %s\n"+
			"  - For Docker: Ensure volume is mounted with proper user permissions",
			absPath, absPath, parentDir)

	case strings.Contains(errStr, "database is locked") || strings.Contains(errStr, "sqlite_busy"):
		return fmt.Sprintf("SQLite database at %s is locked by another process.\n"+
			"  Remediation:\n"+
			"  - Check for other running instances: ps aux | grep iochunt\n"+
			"  - Check for lock files: ls -la %s*", absPath, absPath)

	case strings.Contains(errStr, "disk full") || strings.Contains(errStr, "no space") || strings.Contains(errStr, "sqlite_full"):
		return fmt.Sprintf("Disk full - cannot write to SQLite database at %s.\n"+
			"  Remediation:\n"+
			"  - Check available disk space: df -h %s\n"+
			"  - Free up disk space or expand the volume", absPath, parentDir)

	case strings.Contains(errStr, "corrupt") || strings.Contains(errStr, "malformed") || strings.Contains(errStr, "sqlite_corrupt"):
		return fmt.Sprintf("SQLite database at %s appears to be corrupted.\n"+
			"  CRITICAL: Backup any existing data before proceeding!\n"+
			"  Remediation options:\n"+
			"  1. Try recovery: sqlite3 %s \".recover\" | sqlite3 %s.recovered\n"+
			"  2. Check integrity: sqlite3 %s \"PRAGMA integrity_check;\"",
			absPath, absPath, absPath, absPath)

	case strings.Contains(errStr, "no such file or directory") || strings.Contains(errStr, "cannot find the path"):
		return fmt.Sprintf("Cannot create SQLite database - path does not exist: %s.\n"+
			"  Remediation:\n"+
			"  - Create the parent directory: mkdir -p %s\n"+
			"  - Verify the path in config or IOCHUNT_SQLITE_PATH env var",
			absPath, parentDir)

	case strings.Contains(errStr, "read-only"):
		return fmt.Sprintf("SQLite database location is on a read-only file system: %s.\n"+
			"  Remediation:\n"+
			"  - Move database to a writable location via IOCHUNT_SQLITE_PATH", absPath)
	}

	return fmt.Sprintf("Failed to initialize SQLite database at %s: %v\n"+
		"  Remediation:\n"+
		"  - Ensure the directory %s exists and is writable\n"+
		"  - Check disk space and permissions", absPath, err, parentDir)
}

// printFatalBanner writes the startup failure banner operators look for
func printFatalBanner(title, body string) {
	fmt.Fprintf(os.Stderr, "\n========================================\n")
	fmt.Fprintf(os.Stderr, "FATAL: %s\n", title)
	fmt.Fprintf(os.Stderr, "========================================\n")
	fmt.Fprintf(os.Stderr, "%s\n", body)
	fmt.Fprintf(os.Stderr, "========================================\n\n")
}
