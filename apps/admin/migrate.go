package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("migrations need a postgres database")

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run goose migration commands (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			if cli.db == nil {
				return errNoDatabase
			}
			return migrateFunc(cli.db, args[0], args[1:]...)
		},
	}
}
