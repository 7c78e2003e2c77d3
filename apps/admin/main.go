package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/achievement"
	"github.com/mzalendo/maendeleo/core/roadmap"
	"github.com/mzalendo/maendeleo/storage/database"
	sqlxrepos "github.com/mzalendo/maendeleo/storage/database/sqlx"
)

var logger *log.Logger // todo: logger service

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())
	sdb := sqlx.NewDb(db, core.Conf.Database.Engine)

	// start CLI
	cli := commandLine{
		db:     db,
		achSvc: achievement.NewService(sqlxrepos.NewAchievementRepository(sdb)),
		rmSvc:  roadmap.NewService(sqlxrepos.NewRoadmapRepository(sdb), nil, nil),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
