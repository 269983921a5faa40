// Package authclient provides the client side of an authentication session:
// a persisted bearer credential, a transport that attaches it to outgoing
// requests, a session store with derived identity and role state, and a
// navigation guard that gates routes on that state.
//
// Session lifecycle:
//   - Session derives its Phase from token, profile and in-flight login state:
//     anonymous, authenticating, authenticated without profile, authenticated.
//     A profile never exists without a token and logout clears both together.
//   - Every login, logout and expiry starts a new generation. Results of
//     network calls issued by an older generation are discarded and reported
//     as ErrSuperseded.
//   - ProfilePolicy decides what a failed profile fetch means. PolicySurface
//     returns the error and keeps the token, PolicyLogout treats it as proof
//     the token is invalid and clears the session.
//
// Unauthorized signal:
//   - TransportBinder emits an UnauthorizedEvent for every 401 response.
//     Runtime subscribes the session to it (local expiry) and then asks the
//     Navigator for a hard redirect to the login entry point.
//
// Navigation:
//   - Guard.Decide runs before every navigation and returns exactly one of
//     allow, redirect to login with a return path, or redirect to landing.
package authclient
