package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// Unknown is hashed when a request carries no usable client address.
const Unknown = "unknown"

// HashLength is the number of hex characters kept from the digest
const HashLength = 16

// Hash returns the first HashLength hex characters of the SHA-256 digest of addr.
// The result is deterministic, so the same address always maps to the same identifier.
func Hash(addr string) string {
	sum := sha256.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// ClientAddress resolves the address used for hashing and rate limiting.
// The socket address wins; X-Forwarded-For is only consulted when it is missing.
func ClientAddress(r *http.Request) string {
	if host := remoteHost(r.RemoteAddr); host != "" {
		return host
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	return Unknown
}

func remoteHost(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// RemoteAddr without a port
		return strings.TrimSpace(remoteAddr)
	}
	return host
}
