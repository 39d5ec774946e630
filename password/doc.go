// Package password implements salted PBKDF2 credential hashing for the auth engine.
//
// Hashing is deterministic given (password, salt): registration draws a fresh salt
// through MakeSalt, login recomputes the hash with the stored salt and compares in
// constant time. Plaintext passwords are never compared or stored.
package password
