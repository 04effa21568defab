// Package auth implements the credential and token lifecycle for a REST
// backend: registration, login, JWT access/refresh issuance with refresh
// rotation, password reset, and email verification.
//
// Token lifecycle:
//   - Access tokens are stateless. They are verified by signature and expiry
//     only and are never written to the token store.
//   - Refresh, reset-password, and verify-email tokens are persisted so they
//     can be revoked before natural expiry. Refresh tokens are single use;
//     RefreshAuth deletes the consumed row before minting a new pair.
//   - A token's type claim must match the persisted record's type on
//     verification. A mismatch is treated as forgery and rejected.
//
// Stores:
//   - Users and Tokens are bun-backed repositories aggregated behind a
//     RepositoryManager. The manager owns the transaction runner used when a
//     flow spans both stores (user deletion, password reset).
//
// Every failure is a structured error from the closed taxonomy in errors.go;
// the HTTP layer maps categories to status codes and never re-interprets the
// cause.
package auth
