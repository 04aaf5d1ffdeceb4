package local

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/unimart/unimart/pkg/models"
)

// schemaVersion is the current embedded schema version, stored in the
// database's user_version pragma. Versions are monotonically increasing;
// upgrades are strictly additive and never touch existing tables.
//
// Version history:
//
//	1: products, savedItems, purchasedItems, users
//	2: offers, conversations, messages
const schemaVersion = 2

// collectionsAtVersion returns the collections that must exist at a
// given schema version.
func collectionsAtVersion(v int) []models.Collection {
	switch {
	case v <= 0:
		return nil
	case v == 1:
		return []models.Collection{
			models.Products,
			models.SavedItems,
			models.PurchasedItems,
			models.Users,
		}
	default:
		return models.Collections
	}
}

// migrate upgrades the store from whatever version the file is at to
// schemaVersion. Each collection becomes one table holding the record
// key under its key field name plus the full document as JSON text.
func migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current int
	if err := tx.GetContext(ctx, &current, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("store schema version %d is newer than supported %d", current, schemaVersion)
	}

	for _, c := range collectionsAtVersion(schemaVersion) {
		ddl := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q (%q TEXT PRIMARY KEY, doc TEXT NOT NULL)`,
			c.Name, c.Key,
		)
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create collection %s: %w", c.Name, err)
		}
	}

	if current != schemaVersion {
		// PRAGMA does not accept bound parameters; the value is a constant.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}

	return tx.Commit()
}
