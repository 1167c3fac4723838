package main

import (
	"ceksiak/internal/snapshot"
	"ceksiak/internal/telemetry"
	"context"
	"database/sql"
	"fmt"
)

func newSQLiteStore(ctx context.Context, cfg Config, tel telemetry.API) (snapshot.SQLiteStore, *sql.DB, error) {
	if cfg.Snapshot.Database == "" {
		return snapshot.SQLiteStore{}, nil, fmt.Errorf("snapshot.database is not configured")
	}
	db, err := snapshot.OpenDB(cfg.Snapshot.Database)
	if err != nil {
		return snapshot.SQLiteStore{}, nil, err
	}
	store, err := snapshot.NewSQLiteStore(ctx, db, tel)
	if err != nil {
		db.Close()
		return snapshot.SQLiteStore{}, nil, err
	}
	return store, db, nil
}
