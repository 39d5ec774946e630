// Package auth implements the credential lifecycle for registered accounts:
// registration, password verification, token issuance and validation with a
// short-TTL validation cache, refresh token rotation, revocation, and
// time-boxed or permanent bans.
//
// The package is a library, not a service. Storage is abstracted behind
// store.AccountStore, the validation cache behind cache.Store, and the
// Manager orchestrates the password, jwt, cache and store subpackages.
// Construct a Manager through the Builder:
//
//	mgr, err := auth.New().
//		WithConfig(cfg).
//		WithStore(st).
//		WithRedis(rdb).
//		Build()
//
// All Manager operations take a context.Context and return sentinel errors
// from errors.go; callers branch with errors.Is. Transport, rate limiting
// and authorization policy are out of scope and live above this package.
package auth
