package contenttree

import (
	"fmt"
	"strings"
)

const pathSeparator = ","

// DerivePath computes the parent path and ancestor ids a child of parent must
// carry. A nil parent yields a root node: nil path and no ancestors.
//
// The returned ancestors slice never aliases parent.Ancestors.
func DerivePath(parent *Content) (*string, []string, error) {
	if parent == nil {
		return nil, []string{}, nil
	}
	if parent.ID == "" || strings.Contains(parent.ID, pathSeparator) {
		return nil, nil, fmt.Errorf("%w: parent id %q cannot be used in a path", ErrInvariantViolation, parent.ID)
	}

	var path string
	if parent.ParentPath == nil {
		path = pathSeparator + parent.ID + pathSeparator
	} else {
		if !validPath(*parent.ParentPath) {
			return nil, nil, fmt.Errorf("%w: malformed parent path %q on %s", ErrInvariantViolation, *parent.ParentPath, parent.ID)
		}
		path = *parent.ParentPath + parent.ID + pathSeparator
	}

	ancestors := make([]string, 0, len(parent.Ancestors)+1)
	ancestors = append(ancestors, parent.Ancestors...)
	ancestors = append(ancestors, parent.ID)
	return &path, ancestors, nil
}

// DescendantPrefix returns the parent path every descendant of c starts with.
func DescendantPrefix(c *Content) (string, error) {
	path, _, err := DerivePath(c)
	if err != nil {
		return "", err
	}
	return *path, nil
}

func validPath(p string) bool {
	if len(p) < 3 || !strings.HasPrefix(p, pathSeparator) || !strings.HasSuffix(p, pathSeparator) {
		return false
	}
	for _, id := range strings.Split(p[1:len(p)-1], pathSeparator) {
		if id == "" {
			return false
		}
	}
	return true
}
