package files

import "strings"

// PublicStream resolves the public path under which managed files are served.
type PublicStream struct {
	basePath string
}

// NewPublicStream normalizes dir so it ends with exactly one slash.
func NewPublicStream(dir string) *PublicStream {
	dir = strings.TrimSpace(dir)
	dir = strings.TrimRight(dir, "/")
	return &PublicStream{basePath: dir + "/"}
}

// PublicBasePath returns the prefix that replaces "public://" in file URIs.
func (p *PublicStream) PublicBasePath() string {
	return p.basePath
}
