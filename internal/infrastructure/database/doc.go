// Package database provides SQLite connectivity for the BLE bridge.
//
// It opens the database with WAL mode and a busy timeout, and applies
// embedded schema migrations. Migrations are additive: new columns must be
// nullable or carry a default, and every .up.sql has a matching .down.sql.
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// All queries use parameterised statements and the database file is
// created with 0600 permissions.
package database
