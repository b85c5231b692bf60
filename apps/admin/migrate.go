package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const createDBCmdName = "createdb"

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run database migrations",
		Long: `Runs a goose command on the embedded migrations:
  up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version, fix`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := gooseRunFunc(cli.db, args[0], args[1:]...); err != nil {
				return cli.fail("migrate", err)
			}
			return nil
		},
	}
}

func (cli *commandLine) createDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   createDBCmdName,
		Short: "Create the app database user and database",
		Long:  "Connects as the database admin and creates the app user and database when missing.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := createDBFunc(cli.conf); err != nil {
				return cli.fail(createDBCmdName, err)
			}
			_, _ = fmt.Fprintf(cli.out, "database %q ready\n", cli.conf.Database.Name)
			return nil
		},
	}
}
