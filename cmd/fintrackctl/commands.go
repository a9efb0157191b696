package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"fintrack/auth"
	"fintrack/config"
	"fintrack/database"
	"fintrack/repository"

	"github.com/google/subcommands"
)

var commands = []subcommands.Command{
	&migrateCmd{},
	&rotateKeyCmd{},
	&issueTokenCmd{},
}

// openDB 加载配置并打开数据库，Init 会顺带完成迁移
func openDB(configPath string) (*config.Config, *database.DB, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Init(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

type migrateCmd struct {
	config string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create or upgrade the user and data databases" }
func (*migrateCmd) Usage() string {
	return `fintrackctl migrate [-config <file>]

  Runs schema migration on both databases, generates keypairs for users
  that lack one and fills the date column of legacy entries.
`
}

func (p *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.config, "config", "", "Optional config file overriding the embedded defaults.")
}

func (p *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	_, db, err := openDB(p.config)
	if err != nil {
		return fail(err)
	}
	defer db.Close()
	fmt.Println("migration complete")
	return subcommands.ExitSuccess
}

type rotateKeyCmd struct {
	config string
	user   string
}

func (*rotateKeyCmd) Name() string     { return "rotate-key" }
func (*rotateKeyCmd) Synopsis() string { return "replace a user's signing keypair" }
func (*rotateKeyCmd) Usage() string {
	return `fintrackctl rotate-key -user <username> [-config <file>]

  Generates a new RSA keypair for the user. Every token issued before the
  rotation stops verifying immediately.
`
}

func (p *rotateKeyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.config, "config", "", "Optional config file overriding the embedded defaults.")
	f.StringVar(&p.user, "user", "", "Username whose keypair is rotated.")
}

func (p *rotateKeyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.user == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	_, db, err := openDB(p.config)
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	if err := repository.NewUserRepository(db.User).RotateKeypair(ctx, p.user); err != nil {
		return fail(err)
	}
	fmt.Printf("keypair rotated for %s\n", p.user)
	return subcommands.ExitSuccess
}

type issueTokenCmd struct {
	config string
	user   string
	ttl    time.Duration
}

func (*issueTokenCmd) Name() string     { return "issue-token" }
func (*issueTokenCmd) Synopsis() string { return "print a signed token for a user" }
func (*issueTokenCmd) Usage() string {
	return `fintrackctl issue-token -user <username> [-ttl 24h] [-config <file>]

  Signs a token with the user's private key, for scripting against the API.
`
}

func (p *issueTokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.config, "config", "", "Optional config file overriding the embedded defaults.")
	f.StringVar(&p.user, "user", "", "Username the token is issued for.")
	f.DurationVar(&p.ttl, "ttl", 0, "Token lifetime; defaults to jwt.expire_hours.")
}

func (p *issueTokenCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.user == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if p.ttl < 0 {
		return fail(errors.New("ttl must be positive"))
	}
	cfg, db, err := openDB(p.config)
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	tokens := auth.NewTokenService(repository.NewUserRepository(db.User), cfg.JWT.ExpireTime, cfg.JWT.SessionTokenExpireTime)
	ttl := p.ttl
	if ttl == 0 {
		ttl = tokens.TTL()
	}
	token, err := tokens.IssueWithTTL(ctx, p.user, ttl)
	if err != nil {
		return fail(err)
	}
	fmt.Println(token)
	return subcommands.ExitSuccess
}
