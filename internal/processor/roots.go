package processor

import "strings"

// resolveRoot finds the registered watch root that owns a path.
//
// Roots may be nested; the deepest match wins, so a watch on /projects/app
// shadows a watch on /projects for everything under the app tree. Returns
// empty strings when no root covers the path, which happens for events
// observed between a watch being removed and its backend unwinding.
func (ep *EventProcessor) resolveRoot(path string) (rootPath, watchID string) {
	ep.roots.Range(func(root, wid string) bool {
		if underRoot(root, path) && len(root) > len(rootPath) {
			rootPath, watchID = root, wid
		}
		return true
	})
	return rootPath, watchID
}

// underRoot reports whether path is the root itself or inside it. The
// boundary must land on a separator: a bare prefix check would claim
// /projects/docs-archive for a root at /projects/docs.
func underRoot(root, path string) bool {
	switch root {
	case "":
		return false
	case "/":
		return strings.HasPrefix(path, "/")
	}
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+"/")
}
