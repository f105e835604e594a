package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jacksonlee411/community-portal/modules/profile/infrastructure/persistence"
)

const usage = "usage: dbtool <schema-print|schema-apply> [args]"

type schemaConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

var connect = func(ctx context.Context, url string) (schemaConn, error) {
	return pgx.Connect(ctx, url)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fatal(err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errors.New(usage)
	}
	switch args[0] {
	case "schema-print":
		_, err := io.WriteString(out, persistence.Schema())
		return err
	case "schema-apply":
		return schemaApply(ctx, args[1:], out)
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func schemaApply(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("schema-apply", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var url string
	fs.StringVar(&url, "url", os.Getenv("DATABASE_URL"), "postgres connection string")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if url == "" {
		return errors.New("missing --url (or DATABASE_URL)")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := connect(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(context.Background()) }()

	if _, err := conn.Exec(ctx, persistence.Schema()); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	_, _ = fmt.Fprintln(out, "[dbtool] schema-apply OK")
	return nil
}

func fatal(err error) {
	_, _ = fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
