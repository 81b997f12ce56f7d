package phpintel

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotFileURI is returned by URIToPath for URIs without the file scheme.
var ErrNotFileURI = errors.New("not a valid file URI")

// PathToURI converts a file system path to a file URI.
//
// Backslashes are treated as separators and every path segment is percent-encoded
// with RFC 3986 unreserved characters kept, so "c:\foo\bar.baz" becomes
// "file:///c%3A/foo/bar.baz".
func PathToURI(path string) string {
	path = strings.Trim(strings.ReplaceAll(path, `\`, "/"), "/")

	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = rawURLEncode(p)
	}

	return "file:///" + strings.Join(parts, "/")
}

// URIToPath converts a file URI back to a file system path. Paths with a drive
// letter come back with Windows separators.
func URIToPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNotFileURI, uri, err)
	}

	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s", ErrNotFileURI, uri)
	}

	path := u.Path
	if hasDriveLetter(path) {
		path = strings.TrimPrefix(path, "/")
		path = strings.ReplaceAll(path, "/", `\`)
	}

	return path, nil
}

// hasDriveLetter reports whether a URI path starts with a Windows drive, as in "/c:/foo".
func hasDriveLetter(path string) bool {
	if len(path) < 3 || path[0] != '/' || path[2] != ':' || (len(path) > 3 && path[3] != '/') {
		return false
	}

	c := path[1]

	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

const upperHex = "0123456789ABCDEF"

// rawURLEncode percent-encodes everything except unreserved characters.
func rawURLEncode(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for i := range len(s) {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)

			continue
		}

		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&15])
	}

	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	default:
		return false
	}
}
