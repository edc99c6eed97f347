package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	// SQLite is provided by golang-migrate's sqlite database driver via
	// modernc.org/sqlite; only postgres needs an explicit driver import.
	_ "github.com/lib/pq"

	"github.com/compliance-forge/docuflow/internal/migrate"
)

func main() {
	driver := flag.String("driver", "postgres", "Database driver (postgres|sqlite)")
	dsn := flag.String("dsn", "", "Database connection string")
	version := flag.Bool("version", false, "Print the current migration version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Docuflow database migration tool.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n\n")
		fmt.Fprintf(os.Stderr, "  PostgreSQL:\n")
		fmt.Fprintf(os.Stderr, "    %s -driver=postgres -dsn=\"host=localhost user=postgres password=postgres dbname=docuflow port=5432 sslmode=disable\"\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  SQLite:\n")
		fmt.Fprintf(os.Stderr, "    %s -driver=sqlite -dsn=\".docuflow/docuflow.db\"\n\n", os.Args[0])
	}
	flag.Parse()

	if *dsn == "" {
		log.Fatal("Error: -dsn flag is required\n\nRun with -help for usage information.")
	}
	if *driver != "postgres" && *driver != "sqlite" {
		log.Fatalf("Error: unsupported driver %q (must be 'postgres' or 'sqlite')", *driver)
	}

	sqlDB, err := sql.Open(*driver, *dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	if *version {
		v, dirty, err := migrate.GetMigrationVersion(sqlDB, *driver)
		if err != nil {
			log.Fatalf("Failed to read migration version: %v", err)
		}
		log.Printf("version=%d dirty=%v", v, dirty)
		return
	}

	log.Printf("Running migrations against %s...", *driver)
	if err := migrate.RunMigrations(sqlDB, *driver); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("All migrations completed successfully.")
}
