// Package jwt issues and classifies the engine's signed access tokens.
//
// Access tokens are HS256 JWTs carrying the account's username as subject plus a
// unique token id, so two tokens issued for the same principal are never
// byte-identical. Refresh tokens are opaque high-entropy secrets generated
// independently of the signed token's structure.
//
// Classification is strict: signature, subject, issuer and audience are checked
// before expiry, and the expiry comparison applies zero clock skew. Any skew
// allowance belongs to configuration, not to this package.
package jwt
