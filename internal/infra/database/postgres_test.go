package database

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/pucco93/ebsi-access-control/internal/infra/config"
)

func TestDSNEscapesCredentials(t *testing.T) {
	dsn := DSN(config.PostgresSettings{
		User:     "acl",
		Password: "p@ss:word",
		Host:     "db",
		Port:     5432,
		Database: "acl",
		SSLMode:  "disable",
	})
	if dsn != "postgres://acl:p%40ss%3Aword@db:5432/acl?sslmode=disable" {
		t.Fatalf("unexpected dsn: %s", dsn)
	}
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS acl\.outcome_history`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	if err := Migrate(context.Background(), mock); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	mock.ExpectExec(`CREATE SCHEMA`).WillReturnError(errors.New("permission denied"))
	if err := Migrate(context.Background(), mock); err == nil {
		t.Fatalf("expected migration error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
