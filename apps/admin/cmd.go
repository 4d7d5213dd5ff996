package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/tazama/core/series"
	"github.com/trezcool/tazama/core/user"
	"github.com/trezcool/tazama/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sql.DB
	usrRepo   user.Repository
	seriesSvc *series.Service
	out       io.Writer
}

func (cli *commandLine) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "Tazama administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	rootCmd.SetOut(cli.out)

	rootCmd.AddCommand(cli.addUserCommand())
	rootCmd.AddCommand(cli.resetPasswordCommand())
	rootCmd.AddCommand(cli.migrateCommand())
	rootCmd.AddCommand(cli.locksCommand())
	return rootCmd
}

// run executes the command named by args; args[0] is the program name.
func (cli *commandLine) run(ctx context.Context, args []string) error {
	rootCmd := cli.rootCommand()
	if len(args) > 0 {
		args = args[1:]
	}
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// promptPassword reads a password from stdin without echoing it.
func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}
