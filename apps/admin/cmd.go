package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mzalendo/maendeleo/core/achievement"
	"github.com/mzalendo/maendeleo/core/roadmap"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sql.DB
	achSvc achievement.Service
	rmSvc  roadmap.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args] - run database migrations (up, down, status, ...)")
	fmt.Println("  seed                   - load the default achievement catalog and roadmap levels")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "seed":
		return cli.seed()
	default:
		cli.printUsage()
		return errHelp
	}
}
