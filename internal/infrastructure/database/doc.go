// Package database provides the bridge's SQLite store.
//
// The store keeps the accessory cache (devices seen on previous runs, so
// that stale ones can be pruned after enumeration) and a bounded history of
// write flush outcomes. Schema changes are applied by Migrate from the
// files embedded by the migrations package.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql.
package database
