package migrations

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	chstore "pumpswap-indexer/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database if missing, applies the
// embedded scripts and hands back a connection bound to that database.
func RunClickhouseMigrations(ctx context.Context, dsn string, queryTimeout time.Duration, logger *zap.Logger) (*chstore.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := chstore.DatabaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := createDatabase(ctx, dsn, db); err != nil {
		return nil, err
	}

	files, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	conn, err := chstore.Open(ctx, dsn, chstore.WithMaxExecutionTime(queryTimeout))
	if err != nil {
		return nil, err
	}
	for _, m := range files {
		if err := conn.ExecScript(ctx, m.sql); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		logger.Info("applied clickhouse migration", zap.String("file", m.name), zap.String("database", db))
	}
	return conn, nil
}

// createDatabase runs on a connection with no database selected, since the
// target may not exist yet.
func createDatabase(ctx context.Context, dsn, db string) error {
	admin, err := chstore.Open(ctx, dsn, chstore.WithDatabase(""))
	if err != nil {
		return err
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", db)); err != nil {
		return fmt.Errorf("create database %s: %w", db, err)
	}
	return nil
}
