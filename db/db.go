// Package db holds the SQL schema of the service
package db

import "embed"

// Migrations contains the numbered up/down SQL files
//
//go:embed migrations/*.sql
var Migrations embed.FS
