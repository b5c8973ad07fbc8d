package main

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/natours/tours-api/internal/core/domain"
	"github.com/natours/tours-api/internal/core/ports"
)

type createUserOptions struct {
	username string
	email    string
	role     string
}

// NewCreateUserCmd creates the create-user subcommand. The password is read
// from stdin so it stays out of shell history.
func NewCreateUserCmd() *cobra.Command {
	var opts createUserOptions

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account with a given role",
		Long: `Create an account directly in the store. Signup over HTTP always
creates plain users; use this to seed guides and admins.
The password is read from the first line of stdin.`,
		Example: `  echo 's3cret-pass' | natours create-user --username jonas --email jonas@example.com --role admin`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runCreateUser(cmd, opts, password)
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "", "account username")
	cmd.Flags().StringVar(&opts.email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.role, "role", string(domain.RoleUser), "user, tour-guide, lead-guide or admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	password := strings.TrimRight(line, "\r\n")
	if len(password) < 8 {
		return "", oops.Code("PASSWORD_TOO_SHORT").Errorf("password must be at least 8 characters")
	}
	return password, nil
}

// accountProvisioner is the slice of the account service create-user needs.
type accountProvisioner interface {
	Provision(ctx context.Context, in ports.SignupInput, role domain.Role) (*domain.Account, error)
}

func runCreateUser(cmd *cobra.Command, opts createUserOptions, password string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	role := domain.Role(opts.role)
	if !role.Valid() {
		return oops.Code("INVALID_ROLE").With("role", opts.role).Errorf("unknown role %q", opts.role)
	}

	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	return provision(ctx, cmd, a.accounts, opts, role, password)
}

func provision(ctx context.Context, cmd *cobra.Command, p accountProvisioner, opts createUserOptions, role domain.Role, password string) error {
	acc, err := p.Provision(ctx, ports.SignupInput{
		Username:        opts.username,
		Email:           opts.email,
		Password:        password,
		PasswordConfirm: password,
	}, role)
	if err != nil {
		return err
	}
	cmd.Printf("created %s account %s (%s)\n", acc.Role, acc.ID, acc.Email)
	return nil
}
