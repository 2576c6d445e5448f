package db

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ledgerRow struct {
	ID     int
	Label  string
	Amount int64
}

func openSqlite(t *testing.T) *gorm.DB {
	t.Helper()
	// one shared in-memory db per test, not per connection
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&ledgerRow{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

func countRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(&ledgerRow{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithTxCommits(t *testing.T) {
	conn := openSqlite(t)
	client := &Client{conn: conn}

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Label: "hold", Amount: 1500}).Error
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if n := countRows(t, conn); n != 1 {
		t.Fatalf("want 1 row after commit, got %d", n)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	conn := openSqlite(t)
	client := &Client{conn: conn}

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&ledgerRow{Label: "release", Amount: 900}).Error; err != nil {
			return err
		}
		return errors.New("settlement failed")
	})
	if err == nil {
		t.Fatal("expected the callback error back")
	}
	if n := countRows(t, conn); n != 0 {
		t.Fatalf("rollback must leave nothing behind, got %d rows", n)
	}
}

func TestPing(t *testing.T) {
	client := &Client{conn: openSqlite(t)}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
