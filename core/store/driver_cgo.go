//go:build !nocgo

package store

import _ "github.com/mattn/go-sqlite3"

// driverName is the database/sql driver registered by the CGO-based sqlite3
// binding, the default build.
const driverName = "sqlite3"
