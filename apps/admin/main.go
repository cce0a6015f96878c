package main

import (
	"context"
	"log"
	"os"

	"github.com/mkadiri/kazi/core"
	mongodb "github.com/mkadiri/kazi/storage/database/mongo"
)

func main() {
	db, err := mongodb.Open(core.Conf)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer func() {
		if err = db.Client().Disconnect(context.Background()); err != nil {
			log.Printf("disconnecting database: %v", err)
		}
	}()

	cli := &commandLine{
		db:      db,
		usrRepo: mongodb.NewUserRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
		if err == errHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}
}
