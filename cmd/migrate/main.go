package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/kevin07696/course-payments/internal/config"
	"github.com/kevin07696/course-payments/internal/db"
)

const (
	dialect = "postgres"
	// embeddedDir is the directory inside db.Migrations
	embeddedDir = "migrations"
)

var (
	flags = flag.NewFlagSet("migrate", flag.ExitOnError)
	dir   = flags.String("dir", "", "read migrations from this directory instead of the embedded set")
)

func main() {
	flags.Usage = usage
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		return
	}
	command := args[0]

	migrationsDir := embeddedDir
	if *dir != "" {
		migrationsDir = *dir
	} else if command == "create" {
		log.Fatal("create needs -dir pointing at internal/db/migrations")
	} else {
		goose.SetBaseFS(db.Migrations)
	}

	dbCfg, err := config.LoadDatabaseFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	conn, err := sql.Open("pgx", dbCfg.ConnectionString())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer conn.Close()

	if err := conn.Ping(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := goose.SetDialect(dialect); err != nil {
		log.Fatalf("failed to set dialect: %v", err)
	}

	if err := goose.Run(command, conn, migrationsDir, args[1:]...); err != nil {
		log.Fatalf("goose %v: %v", command, err)
	}
}

func usage() {
	fmt.Print(`Usage: migrate [-dir DIR] COMMAND

Commands:
    up                   Migrate the DB to the most recent version available
    up-by-one            Migrate the DB up by 1
    up-to VERSION        Migrate the DB to a specific VERSION
    down                 Roll back the version by 1
    down-to VERSION      Roll back to a specific VERSION
    redo                 Re-run the latest migration
    reset                Roll back all migrations
    status               Dump the migration status for the current DB
    version              Print the current version of the database
    create NAME sql      Creates new migration file (requires -dir)

Database settings come from DB_HOST, DB_PORT, DB_USER, DB_PASSWORD,
DB_NAME and DB_SSL_MODE, or a .env file in the working directory.

Examples:
    migrate up
    migrate status
    migrate -dir internal/db/migrations create add_refund_reason sql
`)
}
