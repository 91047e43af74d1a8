// Package auth holds the authentication and ownership-authorization core of
// the expense API: credential storage, bearer token issuance and validation,
// and the ownership guard consulted before mutating a record.
//
// Request pipeline:
//   - CredentialStore registers users and verifies email/password pairs. An
//     unknown email and a wrong password produce the same error after the same
//     amount of bcrypt work.
//   - TokenService issues HS256 JWTs carrying the user's identity and verifies
//     them on every protected request. Tokens are stateless and stay valid until
//     they expire.
//   - Guard compares a resolved record's owner with the verified Identity.
//     Missing records are reported before any ownership comparison.
//
// Activity sinks:
//   - ActivitySink receives login, registration and forbidden-mutation events.
//     Sinks run best-effort; errors are logged and never fail the request.
package auth
