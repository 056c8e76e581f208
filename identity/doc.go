// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package identity derives the deduplication key of a voter.

An Identity is an optional account id (set by the auth proxy in a trusted
header) plus an address hash. The hash is HMAC-SHA256 over the client
address keyed with a process-wide salt, truncated to 32 hex characters.
Rotating the salt changes every hash and so resets anonymous dedup.

# Address Sources

The client address is taken from the first non-empty source in a
configured priority list, then the connection's remote address:

	sources := identity.SourcesFromHeaders([]string{"X-Forwarded-For", "X-Real-IP"})
	addr := identity.FirstAddress(r.Header, r.RemoteAddr, sources)

X-Forwarded-For contributes its left-most entry. Ports, brackets and IPv4
mapping are stripped so one client always yields one address. When nothing
resolves, the literal "unknown" is hashed; all such clients share a bucket.
*/
package identity
