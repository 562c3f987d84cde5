package db

import "embed"

// Migrations holds the goose migration files, compiled into the binary so
// migration runs do not depend on the working directory.
//
//go:embed migrations/*.sql
var Migrations embed.FS
