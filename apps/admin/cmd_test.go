package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"testing"

	"github.com/mzalendo/maendeleo/core/achievement"
	"github.com/mzalendo/maendeleo/core/roadmap"
	inmemdb "github.com/mzalendo/maendeleo/storage/database/inmem"
)

func setup(t *testing.T) *commandLine {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags)

	mdb := inmemdb.NewDB()
	return &commandLine{
		achSvc: achievement.NewService(inmemdb.NewAchievementRepository(mdb)),
		rmSvc:  roadmap.NewService(inmemdb.NewRoadmapRepository(mdb), nil, nil),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "roadmap_level", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_seed(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	if err := cli.run([]string{"admin", "seed"}); err != nil {
		t.Fatalf("cli.run() error = %v", err)
	}

	defs, err := cli.achSvc.Query(ctx, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(defs) != len(defaultAchievements) {
		t.Errorf("seeded %d achievements; want %d", len(defs), len(defaultAchievements))
	}

	levels, err := cli.rmSvc.QueryLevels(ctx, defaultCourseID)
	if err != nil {
		t.Fatalf("QueryLevels() error = %v", err)
	}
	if len(levels) != len(defaultLevels) {
		t.Fatalf("seeded %d levels; want %d", len(levels), len(defaultLevels))
	}
	// levels are chained to their predecessor
	if levels[1].Requirements.PreviousLevelID != levels[0].ID {
		t.Errorf("level 2 previous = %q; want %q", levels[1].Requirements.PreviousLevelID, levels[0].ID)
	}

	// seeding again changes nothing
	if err := cli.run([]string{"admin", "seed"}); err != nil {
		t.Fatalf("cli.run() error = %v", err)
	}
	defs, _ = cli.achSvc.Query(ctx, nil)
	if len(defs) != len(defaultAchievements) {
		t.Errorf("re-seed added achievements; got %d", len(defs))
	}
}
