// Package models contains GORM persistence models that map to database tables.
// These models are separate from domain types to keep the domain layer free
// from ORM concerns.
//
// Key Principles:
// 1. Domain types carry no GORM tags
// 2. Persistence models hold the table mappings
// 3. ToDomain / *FromDomain functions convert between the two
// 4. Repositories use persistence models for database operations
//
// Structure:
// - closing.go: accounting periods and their per-module close tags
// - autojournal.go: auto-journal masters and their journal lines
package models
