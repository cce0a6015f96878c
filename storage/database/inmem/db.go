// Package inmemdb provides in-memory repositories that mirror the mongo
// implementations, unique-constraint behavior included. Used by tests
// and local hacking; never in deployments.
package inmemdb

import (
	"sync"

	"github.com/mkadiri/kazi/core/assignment"
	"github.com/mkadiri/kazi/core/user"
)

type DB struct {
	mutex       sync.RWMutex
	users       map[string]*user.User
	assignments map[string]*assignment.Assignment
	submissions map[string]*assignment.Submission
}

func Open() (*DB, error) {
	return &DB{
		users:       make(map[string]*user.User),
		assignments: make(map[string]*assignment.Assignment),
		submissions: make(map[string]*assignment.Submission),
	}, nil
}
