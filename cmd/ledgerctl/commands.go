package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"gorm.io/gorm"

	"piggybank/config"
	"piggybank/database"
	"piggybank/middleware"
	"piggybank/services"
)

// commands все команды ledgerctl
func commands(cfg *config.Config, out io.Writer) []subcommands.Command {
	return []subcommands.Command{
		&migrateCmd{cfg: cfg, out: out},
		&recalcCmd{cfg: cfg, out: out},
		&verifyCmd{cfg: cfg, out: out},
		&tokenCmd{cfg: cfg, out: out},
	}
}

// open подключается к базе без миграций
func open(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return db, closeFn, nil
}

type migrateCmd struct {
	cfg *config.Config
	out io.Writer
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply SQL migrations and sync the schema" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate

  Applies pending SQL migrations from DB_MIGRATIONS_PATH (postgres only),
  then auto-migrates the models.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, closeFn, err := open(c.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	if err := database.Migrate(c.cfg, db); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.out, "schema is up to date")
	return subcommands.ExitSuccess
}

type recalcCmd struct {
	cfg *config.Config
	out io.Writer
}

func (*recalcCmd) Name() string { return "recalc-piggies" }
func (*recalcCmd) Synopsis() string {
	return "recompute every piggy bank balance from its transfer log"
}
func (*recalcCmd) Usage() string {
	return `ledgerctl recalc-piggies

  Rebuilds the cached current_amount of every piggy bank from the sum of
  its transfers and reports how many caches were corrected.
`
}
func (*recalcCmd) SetFlags(*flag.FlagSet) {}

func (c *recalcCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, closeFn, err := open(c.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	changed, err := services.NewPiggyService(db, nil).RecalculateAll(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.out, "%d piggy bank(s) corrected\n", changed)
	return subcommands.ExitSuccess
}

type verifyCmd struct {
	cfg *config.Config
	out io.Writer
}

func (*verifyCmd) Name() string { return "verify-balances" }
func (*verifyCmd) Synopsis() string {
	return "report accounts whose cached balance differs from their transactions"
}
func (*verifyCmd) Usage() string {
	return `ledgerctl verify-balances

  Compares each account balance with the sum of its transactions.
  Exits with a failure status when a mismatch is found.
`
}
func (*verifyCmd) SetFlags(*flag.FlagSet) {}

func (c *verifyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, closeFn, err := open(c.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	mismatches, err := services.NewAccountService(db, c.cfg.Ledger.DefaultCurrency).Verify(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if len(mismatches) == 0 {
		fmt.Fprintln(c.out, "all balances match")
		return subcommands.ExitSuccess
	}
	for _, m := range mismatches {
		fmt.Fprintf(c.out, "%s\tcached %s\tcomputed %s\n", m.AccountID, m.Cached.StringFixed(2), m.Computed.StringFixed(2))
	}
	return subcommands.ExitFailure
}

type tokenCmd struct {
	cfg  *config.Config
	out  io.Writer
	user string
	name string
	ttl  time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an API token for a user" }
func (*tokenCmd) Usage() string {
	return `ledgerctl token -user <user_id> [-name <display name>] [-ttl 24h]

  Signs a bearer token with JWT_SECRET_KEY.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User ID carried in the user_id claim.")
	f.StringVar(&c.name, "name", "", "Display name used in transfer descriptions.")
	f.DurationVar(&c.ttl, "ttl", 24*time.Hour, "Token lifetime.")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		return subcommands.ExitUsageError
	}
	token, err := middleware.IssueToken([]byte(c.cfg.JWT.SecretKey), c.user, c.name, c.ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.out, token)
	return subcommands.ExitSuccess
}
