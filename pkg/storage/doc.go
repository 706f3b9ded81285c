// Package storage provides the PostgreSQL connection pool and the
// embedded SQL migration runner shared by all stores.
package storage
