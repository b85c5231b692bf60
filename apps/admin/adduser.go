package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, email string
	var owner bool

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update an admin user",
		Long:  "Creates an admin user, or promotes and resets the password of the user owning --email. The password is prompted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return cli.fail("adduser", err)
			}
			usr, created, err := cli.addUser(cmd.Context(), name, email, pwd, owner)
			if err != nil {
				return cli.fail("adduser", err)
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			_, _ = fmt.Fprintf(cli.out, "admin %s %s\n", usr.Email, verb)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "the admin's display name")
	cmd.Flags().StringVar(&email, "email", "", "the admin's email (used to sign in)")
	cmd.Flags().BoolVar(&owner, "owner", false, "grant the admin:owner role")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// addUser creates an active admin user, or updates the one owning email.
func (cli *commandLine) addUser(ctx context.Context, name, email, pwd string, owner bool) (user.User, bool, error) {
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	roles := []string{user.RoleAdmin}
	if owner {
		roles = user.AdminRoles
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	created := false
	switch {
	case err == nil:
	case errors.Cause(err) == user.ErrNotFound:
		created = true
		usr = user.User{Email: email, CreatedAt: core.NowFunc()}
	default:
		return user.User{}, false, errors.Wrap(err, "finding user")
	}

	if name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = email
	}
	usr.Roles = mergeRoles(usr.Roles, roles)
	usr.IsActive = true
	usr.UpdatedAt = core.NowFunc()
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, false, errors.Wrap(err, "hashing password")
	}

	if created {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	if err != nil {
		return user.User{}, false, errors.Wrap(err, "saving user")
	}
	return usr, created, nil
}

func mergeRoles(current, extra []string) []string {
	merged := append([]string{}, current...)
	for _, role := range extra {
		found := false
		for _, r := range merged {
			if r == role {
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, role)
		}
	}
	return merged
}
