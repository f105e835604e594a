package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jacksonlee411/community-portal/modules/profile/infrastructure/persistence"
)

type connStub struct {
	execSQL string
	execErr error
	closed  bool
}

func (c *connStub) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	c.execSQL = sql
	return pgconn.CommandTag{}, c.execErr
}

func (c *connStub) Close(context.Context) error {
	c.closed = true
	return nil
}

func stubConnect(t *testing.T, conn *connStub, err error) {
	t.Helper()
	orig := connect
	connect = func(context.Context, string) (schemaConn, error) {
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	t.Cleanup(func() { connect = orig })
}

func TestRun_Usage(t *testing.T) {
	if err := run(context.Background(), nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected usage error")
	}
	if err := run(context.Background(), []string{"rls-smoke"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected unknown subcommand error")
	}
}

func TestRun_SchemaPrint(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"schema-print"}, &out); err != nil {
		t.Fatalf("err=%v", err)
	}
	if out.String() != persistence.Schema() {
		t.Fatalf("out=%q", out.String())
	}
}

func TestRun_SchemaApply(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if err := run(context.Background(), []string{"schema-apply"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected missing url error")
	}

	conn := &connStub{}
	stubConnect(t, conn, nil)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"schema-apply", "--url", "postgres://x"}, &out); err != nil {
		t.Fatalf("err=%v", err)
	}
	if conn.execSQL != persistence.Schema() || !conn.closed {
		t.Fatalf("conn=%+v", conn)
	}
	if !strings.Contains(out.String(), "OK") {
		t.Fatalf("out=%q", out.String())
	}
}

func TestRun_SchemaApplyErrors(t *testing.T) {
	stubConnect(t, nil, errors.New("dial"))
	if err := run(context.Background(), []string{"schema-apply", "--url", "postgres://x"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected connect error")
	}

	conn := &connStub{execErr: errors.New("permission denied")}
	stubConnect(t, conn, nil)
	err := run(context.Background(), []string{"schema-apply", "--url", "postgres://x"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "permission denied") || !conn.closed {
		t.Fatalf("err=%v closed=%v", err, conn.closed)
	}

	if err := run(context.Background(), []string{"schema-apply", "--bogus"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected flag error")
	}
}
