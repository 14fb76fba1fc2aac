// Package models contains GORM persistence models that map to database tables.
// They are kept apart from the domain entities so the domain stays free of ORM tags;
// each model converts to and from its domain type.
//
//   - base.go: shared columns (ID, timestamps, version, tenant)
//   - sales.go: products, stock levels, stock reservations, sales, lines, payments
//   - outbox.go: transactional outbox entries
package models
