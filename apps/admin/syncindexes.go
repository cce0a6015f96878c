package main

import (
	"context"

	mongodb "github.com/mkadiri/kazi/storage/database/mongo"
)

var ensureIndexesFunc = mongodb.EnsureIndexes // mockable

// syncIndexes creates the unique indexes the uniqueness rules rely on.
func (cli *commandLine) syncIndexes() error {
	return ensureIndexesFunc(context.Background(), cli.db)
}
