// Package rbac implements path-scoped role-based access control over the
// program hierarchy.
//
// A scoped role binds a user to a role name at one node of the hierarchy,
// carrying the node's materialized path at grant time. Authorization walks
// from the target resource upward toward the root: a role granted at a
// coarser level covers every descendant, but a role granted at a finer
// level never covers an ancestor. List endpoints instead use a bulk
// path-prefix filter that matches in both directions, which is deliberately
// more permissive than the point check.
//
// Role names map to fixed permission sets at build time; the identity
// provider holds an unscoped mirror of each user's role names, maintained
// best-effort on grant and revoke. The local store is the source of truth.
package rbac
