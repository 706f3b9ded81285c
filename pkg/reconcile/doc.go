// Package reconcile repairs divergence between the local role store and
// the identity provider's mirrored role names. Mirror calls on grant and
// revoke are best-effort, so the two can drift apart after an IdP outage;
// the reconciler periodically recomputes each user's expected role names
// from the local store and applies idempotent adds and removes until the
// provider matches.
package reconcile
