// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// UnknownAddress is hashed when no candidate source yields an address.
// Every such client shares one dedup and rate limit bucket.
const UnknownAddress = "unknown"

// HashLen is the hex length of an address hash (128 bits).
const HashLen = 32

// Identity is the deduplication key of a voter.
type Identity struct {
	AccountID   string // empty for anonymous voters
	AddressHash string // always set
}

func (id Identity) HasAccount() bool {
	return id.AccountID != ""
}

// Key returns the rate limiter key for the identity.
func (id Identity) Key() string {
	if id.HasAccount() {
		return "acct:" + id.AccountID
	}
	return "addr:" + id.AddressHash
}

// Source is one candidate location of the client address.
type Source struct {
	Header string
	// TakeFirst selects the left-most entry of a comma separated list
	// (the originating client in X-Forwarded-For).
	TakeFirst bool
}

// SourcesFromHeaders turns a priority-ordered header list into sources.
func SourcesFromHeaders(headers []string) []Source {
	sources := make([]Source, 0, len(headers))
	for _, h := range headers {
		sources = append(sources, Source{
			Header:    http.CanonicalHeaderKey(h),
			TakeFirst: strings.EqualFold(h, "X-Forwarded-For"),
		})
	}
	return sources
}

// FirstAddress returns the first non-empty address among the sources,
// falling back to remoteAddr and finally to UnknownAddress.
func FirstAddress(header http.Header, remoteAddr string, sources []Source) string {
	for _, src := range sources {
		v := header.Get(src.Header)
		if src.TakeFirst {
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = v[:i]
			}
		}
		if addr := normalizeAddress(v); addr != "" {
			return addr
		}
	}
	if addr := normalizeAddress(remoteAddr); addr != "" {
		return addr
	}
	return UnknownAddress
}

// normalizeAddress strips ports and brackets and canonicalizes IPs so the
// same client always hashes to the same value.
func normalizeAddress(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(v); err == nil {
		v = host
	}
	v = strings.TrimSuffix(strings.TrimPrefix(v, "["), "]")
	if ip, err := netip.ParseAddr(v); err == nil {
		return ip.Unmap().WithZone("").String()
	}
	return v
}

// HashAddress creates a one-way hash of an address for privacy.
// Includes salt to prevent rainbow table attacks.
func HashAddress(addr, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(addr))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:HashLen/2])
}

// Resolver derives voter identities from requests.
type Resolver struct {
	salt          string
	sources       []Source
	accountHeader string
}

// NewResolver creates a resolver. The account header is set by the auth
// proxy in front of the service; an empty name disables account lookup.
func NewResolver(salt string, sources []Source, accountHeader string) *Resolver {
	return &Resolver{
		salt:          salt,
		sources:       sources,
		accountHeader: accountHeader,
	}
}

// Resolve builds the identity from an optional account id and the request's
// address candidates.
func (r *Resolver) Resolve(accountID string, header http.Header, remoteAddr string) Identity {
	addr := FirstAddress(header, remoteAddr, r.sources)
	return Identity{
		AccountID:   strings.TrimSpace(accountID),
		AddressHash: HashAddress(addr, r.salt),
	}
}

// AccountID returns the authenticated account of the request, if any.
func (r *Resolver) AccountID(req *http.Request) string {
	if r.accountHeader == "" {
		return ""
	}
	return strings.TrimSpace(req.Header.Get(r.accountHeader))
}

// FromRequest resolves the identity of an HTTP request.
func (r *Resolver) FromRequest(req *http.Request) Identity {
	return r.Resolve(r.AccountID(req), req.Header, req.RemoteAddr)
}
