// Package idp wraps the external identity provider (Auth0). The provider
// owns user accounts and a coarse, unscoped copy of each user's role
// names; the local role-assignment store remains the source of truth for
// scoped authorization.
package idp
