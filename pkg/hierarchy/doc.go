// Package hierarchy models the Digital Lions resource tree:
// Implementing Partner → Community → Team. Every node carries a
// slash-segmented materialized path that encodes its position and
// ancestry; the RBAC engine compares these paths to decide access.
package hierarchy
