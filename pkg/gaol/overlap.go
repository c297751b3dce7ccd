package gaol

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// validateNoOverlap strengthens the spec's "undefined if patterns overlap"
// invariant into a construction-time error for the cases doublestar glob
// matching can catch cheaply: a Subpath's "**" glob matching another
// pattern's root, or two patterns naming the identical path. This is not
// exhaustive (a Subpath nested three directories under another Subpath with
// an intervening Literal is still only caught if one contains the other),
// but it turns the common copy-paste mistake into an immediate, actionable
// error instead of a kernel-level enforcement surprise.
func validateNoOverlap(ops []Operation) error {
	type pat struct {
		pattern PathPattern
		opName  string
	}
	var pats []pat
	for _, op := range ops {
		switch {
		case op.IsFileReadAll():
			pats = append(pats, pat{op.path, "FileReadAll"})
		case op.IsFileReadMetadata():
			pats = append(pats, pat{op.path, "FileReadMetadata"})
		}
	}

	for i := range pats {
		for j := range pats {
			if i == j {
				continue
			}
			if patternsOverlap(pats[i].pattern, pats[j].pattern) {
				return &PolicyError{
					Kind: OverlappingPatterns,
					Detail: fmt.Sprintf("%s(%s) overlaps %s(%s)",
						pats[i].opName, pats[i].pattern, pats[j].opName, pats[j].pattern),
				}
			}
		}
	}
	return nil
}

// patternsOverlap reports whether a and b name overlapping filesystem
// locations: the same literal path, or one subpath's glob matching the
// other's root.
func patternsOverlap(a, b PathPattern) bool {
	ap := filepath.Clean(a.path)
	bp := filepath.Clean(b.path)

	if ap == bp {
		return true
	}

	if a.subtre {
		if matched, _ := doublestar.Match(ap+"/**", bp); matched {
			return true
		}
		if strings.HasPrefix(bp, ap+string(filepath.Separator)) {
			return true
		}
	}
	if b.subtre {
		if matched, _ := doublestar.Match(bp+"/**", ap); matched {
			return true
		}
		if strings.HasPrefix(ap, bp+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
