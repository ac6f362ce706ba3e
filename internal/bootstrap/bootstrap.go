// Package bootstrap implements the Account Bootstrapper (§4.6): once a
// primary is known, it creates the root user and the application
// user/database. It is retried on subsequent cycles until it succeeds
// once in this process (§7's BootstrapError is non-fatal). It does not
// check the admin database for existing users to tell whether an
// earlier process already bootstrapped the cluster; it relies on
// createUser's user-exists error for idempotence.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"mongorsop/internal/logger"
	"mongorsop/internal/mongo"
	"mongorsop/internal/rsops"
)

// Spec holds the accounts the Bootstrapper creates, sourced from
// configuration (§6).
type Spec struct {
	RootUsername string
	RootPassword string

	AppDatabase string
	AppUsername string
	AppPassword string

	SentinelCollection string
}

// Bootstrapper tracks whether bootstrap has already succeeded this
// process lifetime, per the "singleton process-wide state" design
// note -- nothing here persists across restarts, which is safe because
// CreateUser/EnsureDatabase are idempotent.
type Bootstrapper struct {
	spec Spec
	done bool
}

// New builds a Bootstrapper for the given account spec.
func New(spec Spec) *Bootstrapper {
	return &Bootstrapper{spec: spec}
}

// Done reports whether bootstrap has already succeeded.
func (b *Bootstrapper) Done() bool { return b.done }

// Run connects to primaryHost and performs the root-user,
// application-user and application-database steps of §4.6. It is safe
// to call on every cycle; once Done() is true, Run still verifies the
// users exist (no-op if so) rather than trusting the in-memory flag
// blindly across a process restart mid-bootstrap.
func (b *Bootstrapper) Run(ctx context.Context, primaryHost string) error {
	if err := b.createRootUser(ctx, primaryHost); err != nil {
		return rsops.NewError(rsops.KindBootstrap, fmt.Errorf("create root user: %w", err))
	}

	if err := b.createAppAccount(ctx, primaryHost); err != nil {
		return rsops.NewError(rsops.KindBootstrap, fmt.Errorf("create application account: %w", err))
	}

	b.done = true
	logger.Info("account bootstrap complete", logger.F("database", b.spec.AppDatabase), logger.F("user", b.spec.AppUsername))
	return nil
}

// createRootUser connects under the localhost exception (no
// credentials) and creates the root user. If the user already exists
// this is a no-op.
func (b *Bootstrapper) createRootUser(ctx context.Context, primaryHost string) error {
	client, err := mongo.Dial(ctx, primaryHost, "", "")
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	err = client.CreateUser(ctx, "admin", b.spec.RootUsername, b.spec.RootPassword, []string{"root"})
	if err != nil && !errors.Is(err, mongo.ErrUserExists) {
		return err
	}
	return nil
}

// createAppAccount reconnects authenticated as root, ensures the
// application database exists via a sentinel document, and creates
// the application user scoped to readWrite on that database.
func (b *Bootstrapper) createAppAccount(ctx context.Context, primaryHost string) error {
	client, err := mongo.Dial(ctx, primaryHost, b.spec.RootUsername, b.spec.RootPassword)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	if err := client.EnsureDatabase(ctx, b.spec.AppDatabase, b.spec.SentinelCollection); err != nil {
		return err
	}

	err = client.CreateUser(ctx, b.spec.AppDatabase, b.spec.AppUsername, b.spec.AppPassword, []string{"readWrite"})
	if err != nil && !errors.Is(err, mongo.ErrUserExists) {
		return err
	}
	return nil
}
