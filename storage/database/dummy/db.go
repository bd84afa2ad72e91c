package dummydb

import (
	"sync"

	"github.com/trezcool/ratiba/core/user"
	"github.com/trezcool/ratiba/core/window"
)

type (
	DB struct {
		user   *userTable
		window *windowTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	windowTable struct {
		sync.RWMutex
		table map[string]*window.Window
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		window: &windowTable{table: make(map[string]*window.Window)},
	}
	return db, nil
}
