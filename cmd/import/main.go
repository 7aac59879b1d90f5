package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/univecal/unical-api/internal/importer"
	"github.com/univecal/unical-api/internal/repository"
	"github.com/univecal/unical-api/pkg/config"
	"github.com/univecal/unical-api/pkg/database"
	"github.com/univecal/unical-api/pkg/logger"
)

const usage = `usage: unical-import <subcommand> <datapath>

subcommands:
  locations   import the campus locations CSV
  classrooms  import the classrooms CSV
  courses     import the teaching activities CSV
  lessons     import the lessons JSON (calendar id -> events)
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	subcommand, datapath := flag.Arg(0), flag.Arg(1)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	imp := importer.New(repository.NewImportRepository(db), logr)
	ctx := context.Background()

	var stats *importer.Stats
	switch subcommand {
	case "locations":
		stats, err = imp.Locations(ctx, datapath)
	case "classrooms":
		stats, err = imp.Classrooms(ctx, datapath)
	case "courses":
		stats, err = imp.Courses(ctx, datapath)
	case "lessons":
		stats, err = imp.Lessons(ctx, datapath)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logr.Sugar().Fatalw("import failed", "subcommand", subcommand, "error", err)
	}
	logr.Sugar().Infow("import finished",
		"subcommand", subcommand,
		"processed", stats.Processed,
		"created", stats.Created,
		"skipped", stats.Skipped)
}
