// Package sqlstore implements store.IStore on a SQL table
// (dlock_records: key, value) using database/sql with the sqlite3
// (mattn/go-sqlite3) or postgres (lib/pq) driver.
//
// Write is an upsert, Create an insert that does nothing on conflict, which
// gives an atomic create-if-absent on both databases. A postgres table
// shared by many hosts is a convenient lock table when a database is already
// part of the deployment.
package sqlstore
