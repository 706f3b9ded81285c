// Package api assembles the HTTP surface of the backend: the hierarchy
// CRUD endpoints, the child and workshop endpoints, the user management
// endpoints, and the operational routes (health, metrics).
//
// Every mutating route authorizes against the node it touches; listing
// routes go through the scoped-role store so callers only see the slice
// of the hierarchy their roles reach.
package api
