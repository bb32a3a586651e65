// Package database provides a GORM connection wrapper with connection
// retry, pooling, a zerolog-backed GORM logger, transactions and error
// translation to AppError. The SQLite driver is built in.
//
// Use Component to manage the connection through the component registry:
//
//	db := database.NewComponent(cfg.Database, log).
//		WithAutoMigrate(gormstore.Models()...)
//	registry.Register(db)
package database
