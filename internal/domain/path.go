package domain

import "strings"

// Separator joins classification path segments. Paths are always stored
// relative to the project root, without a leading separator.
const Separator = `\`

// NormalizePath converts forward slashes to the canonical separator and trims
// stray leading or trailing separators.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "/", Separator)
	return strings.Trim(p, Separator)
}

// SplitPath returns the segments of a normalized path. An empty path yields
// no segments.
func SplitPath(p string) []string {
	p = NormalizePath(p)
	if p == "" {
		return nil
	}
	return strings.Split(p, Separator)
}

// JoinPath assembles segments into a path, dropping empty segments.
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = NormalizePath(s)
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, Separator)
}

// PathDepth is the number of segments in the path.
func PathDepth(p string) int {
	return len(SplitPath(p))
}

// IsStrictDescendant reports whether child sits strictly below ancestor in
// the tree, by whole-segment prefix. A path is not its own descendant.
func IsStrictDescendant(child, ancestor string) bool {
	child = NormalizePath(child)
	ancestor = NormalizePath(ancestor)
	if ancestor == "" || child == ancestor {
		return false
	}
	return strings.HasPrefix(child, ancestor+Separator)
}

// IsSpecAbsolute classifies a custom area spec: a spec containing any path
// separator is taken verbatim from the project root, otherwise it nests
// under the parent's default path.
func IsSpecAbsolute(spec string) bool {
	return strings.ContainsAny(spec, `/\`)
}
