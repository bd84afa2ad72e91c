package main

import (
	"github.com/pressly/goose/v3"

	appfs "github.com/trezcool/ratiba/fs"
)

func (cli *commandLine) migrate(args []string) error {
	goose.SetBaseFS(appfs.FS)

	command := args[0]
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return goose.Run(command, cli.db, "migrations", arguments...)
}
