package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Jagadeesh-777/patient-docs-portal/internal/config"
)

var migrationLog = log.New(os.Stdout, "", 0)

type migrationStep struct {
	Name string
	SQL  string
}

// SQLite: AUTOINCREMENT forces monotone rowids so ids are never reused after
// deletion. created_at is RFC3339 TEXT with a fixed-width nanosecond fraction,
// so lexicographic order is time order.
var sqliteSteps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  filename   TEXT    NOT NULL,
  filepath   TEXT    NOT NULL UNIQUE,
  filesize   INTEGER NOT NULL CHECK (filesize >= 0),
  created_at TEXT    NOT NULL
);`,
	},
	{
		Name: "create_index_documents_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at);`,
	},
}

// Postgres: identity columns draw from a sequence that never goes backwards,
// giving the same never-reused id guarantee.
var postgresSteps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id         BIGINT      GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
  filename   TEXT        NOT NULL,
  filepath   TEXT        NOT NULL UNIQUE,
  filesize   BIGINT      NOT NULL CHECK (filesize >= 0),
  created_at TIMESTAMPTZ NOT NULL
);`,
	},
	{
		Name: "create_index_documents_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at);`,
	},
}

// EnsureMigrated checks if the 'documents' table exists and runs the dialect's
// migration steps if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, driver string, loc *time.Location) error {
	start := time.Now()

	var (
		sentinel string
		steps    []migrationStep
	)
	switch driver {
	case config.MetadataDriverSQLite:
		sentinel = `SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'documents'`
		steps = sqliteSteps
	case config.MetadataDriverPostgres:
		sentinel = `SELECT to_regclass('public.documents') IS NOT NULL`
		steps = postgresSteps
	default:
		return fmt.Errorf("unknown metadata driver %q", driver)
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"driver":    driver,
	})

	var exists bool
	if err := db.QueryRowContext(ctx, sentinel).Scan(&exists); err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"driver":        driver,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"driver":      driver,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			logJSON(loc, map[string]any{
				"component":      "database",
				"event":          "db_migration_failed",
				"status":         "error",
				"migration_step": step.Name,
				"error_message":  err.Error(),
				"driver":         driver,
				"duration_ms":    time.Since(start).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"driver":           driver,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"driver":      driver,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		migrationLog.Printf("failed to marshal migration log: %v", err)
		return
	}
	migrationLog.Println(string(b))
}
