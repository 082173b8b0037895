// Package imagematch decides which images on a source page survived
// migration to a target page. Matching is layered: exact address first, then
// filename, then content hash, then alt text.
package imagematch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// Status describes the migration outcome for one source image.
type Status string

const (
	StatusFound      Status = "found"
	StatusMissing    Status = "missing"
	StatusUnverified Status = "unverified"
)

// Method records which layer produced a match.
type Method string

const (
	MethodURL      Method = "url"
	MethodFilename Method = "filename"
	MethodHash     Method = "hash"
	MethodAltText  Method = "alt"
)

// Ref is one image occurrence in a document.
type Ref struct {
	Address string `json:"address"`
	AltText string `json:"altText"`
}

// Match is the verdict for one source image.
type Match struct {
	Address        string `json:"address"`
	AltText        string `json:"altText"`
	Status         Status `json:"status"`
	Method         Method `json:"matchMethod,omitempty"`
	MatchedAddress string `json:"matchedAddress,omitempty"`
}

// Report lists one Match per source image, in document order.
type Report []Match

// Lookup finds the match entry for an address, falling back to a
// filename-suffix comparison so content-delivery path rewrites still resolve.
func (r Report) Lookup(address string) (Match, bool) {
	for _, m := range r {
		if m.Address == address {
			return m, true
		}
	}
	name := BaseName(address)
	if name == "" {
		return Match{}, false
	}
	for _, m := range r {
		if BaseName(m.Address) == name {
			return m, true
		}
	}
	return Match{}, false
}

// MatchedOn reports whether any found source image resolved to the given
// target address, by exact address or filename fallback.
func (r Report) MatchedOn(address string) bool {
	name := BaseName(address)
	for _, m := range r {
		if m.Status != StatusFound || m.MatchedAddress == "" {
			continue
		}
		if m.MatchedAddress == address {
			return true
		}
		if name != "" && BaseName(m.MatchedAddress) == name {
			return true
		}
	}
	return false
}

// BaseName extracts the final path segment of an image address, ignoring
// query strings. Returns "" when no usable segment exists.
func BaseName(address string) string {
	u, err := url.Parse(address)
	if err == nil && u.Path != "" {
		address = u.Path
	}
	name := path.Base(address)
	if name == "." || name == "/" {
		return ""
	}
	return strings.ToLower(name)
}

// Fetcher retrieves image bytes for the content-hash layer.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Matcher compares source images against a target document's images.
// A nil fetcher disables the content-hash layer.
type Matcher struct {
	fetcher Fetcher
}

// NewMatcher creates a Matcher. fetcher may be nil.
func NewMatcher(fetcher Fetcher) *Matcher {
	return &Matcher{fetcher: fetcher}
}

// Compare produces one Match per source image. Unmatched images whose bytes
// could not be fetched for hashing are reported unverified rather than
// missing, since absence was never established.
func (m *Matcher) Compare(ctx context.Context, source, target []Ref) Report {
	report := make(Report, 0, len(source))

	targetHashes := make(map[string]string) // address -> content hash, lazy
	hashed := false

	for _, src := range source {
		match := Match{Address: src.Address, AltText: src.AltText}

		if addr, ok := matchByAddress(src, target); ok {
			match.Status = StatusFound
			match.Method = MethodURL
			match.MatchedAddress = addr
			report = append(report, match)
			continue
		}
		if addr, ok := matchByFilename(src, target); ok {
			match.Status = StatusFound
			match.Method = MethodFilename
			match.MatchedAddress = addr
			report = append(report, match)
			continue
		}

		if m.fetcher != nil {
			if !hashed {
				for _, t := range target {
					if data, err := m.fetcher.Fetch(ctx, t.Address); err == nil {
						targetHashes[t.Address] = hashBytes(data)
					}
				}
				hashed = true
			}
			if addr, ok, verified := m.matchByHash(ctx, src, targetHashes); ok {
				match.Status = StatusFound
				match.Method = MethodHash
				match.MatchedAddress = addr
				report = append(report, match)
				continue
			} else if !verified {
				if addr, ok := matchByAltText(src, target); ok {
					match.Status = StatusFound
					match.Method = MethodAltText
					match.MatchedAddress = addr
				} else {
					match.Status = StatusUnverified
				}
				report = append(report, match)
				continue
			}
		}

		if addr, ok := matchByAltText(src, target); ok {
			match.Status = StatusFound
			match.Method = MethodAltText
			match.MatchedAddress = addr
		} else if m.fetcher == nil {
			match.Status = StatusUnverified
		} else {
			match.Status = StatusMissing
		}
		report = append(report, match)
	}

	return report
}

func matchByAddress(src Ref, target []Ref) (string, bool) {
	for _, t := range target {
		if t.Address != "" && t.Address == src.Address {
			return t.Address, true
		}
	}
	return "", false
}

func matchByFilename(src Ref, target []Ref) (string, bool) {
	name := BaseName(src.Address)
	if name == "" {
		return "", false
	}
	for _, t := range target {
		if BaseName(t.Address) == name {
			return t.Address, true
		}
	}
	return "", false
}

func matchByAltText(src Ref, target []Ref) (string, bool) {
	alt := strings.TrimSpace(strings.ToLower(src.AltText))
	if alt == "" {
		return "", false
	}
	for _, t := range target {
		if strings.TrimSpace(strings.ToLower(t.AltText)) == alt {
			return t.Address, true
		}
	}
	return "", false
}

// matchByHash compares the source image's content hash against the target
// hashes. verified is false when the source bytes could not be fetched.
func (m *Matcher) matchByHash(ctx context.Context, src Ref, targetHashes map[string]string) (addr string, ok, verified bool) {
	data, err := m.fetcher.Fetch(ctx, src.Address)
	if err != nil {
		return "", false, false
	}
	want := hashBytes(data)
	for address, h := range targetHashes {
		if h == want {
			return address, true, true
		}
	}
	return "", false, true
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
