package main

import (
	"database/sql"
	"fmt"
	"io"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/university"
	"github.com/trezcool/campusdeals/core/user"
	"github.com/trezcool/campusdeals/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword         // mockable
	gooseRunFunc     = database.RunMigrations    // mockable
	createDBFunc     = database.CreateIfNotExist // mockable

	errEmptyPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	conf    *core.Config
	logger  core.Logger
	out     io.Writer
	connect func() error

	db      *sql.DB
	usrRepo user.Repository
	uniSvc  *university.Service
}

// rootCmd builds the command tree. Every command but createdb needs a database connection.
func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "CampusDeals operator tools",
		Long:          "Creates admin users, resets passwords, runs database migrations and seeds universities.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == createDBCmdName || cli.db != nil || cli.connect == nil {
				return nil
			}
			if err := cli.connect(); err != nil {
				return cli.fail("connecting", err)
			}
			return nil
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.migrateCmd(),
		cli.createDBCmd(),
		cli.seedCmd(),
	)
	return root
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}

func (cli *commandLine) fail(action string, err error) error {
	cli.logger.Error(fmt.Sprintf("%s: %v", action, err), err)
	return err
}
