//go:build nocgo

package store

import _ "modernc.org/sqlite"

// driverName is the database/sql driver registered by the CGO-free,
// pure-Go sqlite implementation, selected by building with -tags nocgo
// for environments where a C toolchain is unavailable.
const driverName = "sqlite"
