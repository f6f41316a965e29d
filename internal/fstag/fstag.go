// Package fstag is the lock core's view of the backing file system: it
// is never asked to read or write file content, only to report whether a
// resource exists and, if so, its entity tag (§6: "File system: select(path)
// → {Missing | Entry}; Entry.get_entity_tag() → EntityTag?"). This keeps
// the lock package decoupled from the full webdav.FileSystem surface
// (Mkdir/OpenFile/RemoveAll/Rename/...), which belongs to the out-of-scope
// HTTP method-handler layer.
//
// OSFileSystem's path resolution is adapted from the teacher repository's
// fs.FS.resolve (webdav/fs/fs.go in github.com/rfielding/webdev), trimmed
// to the read-only existence/etag question this package needs and with
// the OPA/rego permission layer removed: that layer is an authorization
// concern of the file-serving handler, out of scope for the lock core
// per spec §1.
package fstag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// EntityTag is an opaque version marker for a resource.
type EntityTag string

// ErrMissing is returned by FileSystem.Stat when the named resource does
// not exist.
var ErrMissing = errors.New("fstag: resource does not exist")

// FileSystem is the outbound interface the lock manager consumes when
// evaluating entity-tag conditions during If-header evaluation and
// refresh (§4.D, §4.F Refresh step 3).
type FileSystem interface {
	// Stat returns the entity tag of name. If the resource carries no
	// entity tag (a collection, typically), it returns "" with a nil
	// error (an empty tag is not an error, only an unknown one). If the
	// resource does not exist, Stat returns ErrMissing.
	Stat(ctx context.Context, name string) (EntityTag, error)
}

// OSFileSystem answers entity-tag queries from a directory tree rooted
// at Root, the way the teacher's fs.FS served file content from Root.
type OSFileSystem struct {
	Root string
}

// resolve maps a '/'-separated lock path onto the native file system,
// rejecting paths that would escape Root or embed a NUL byte, the same
// guard the teacher's fs.FS.resolve applied before calling os.Open.
func (d OSFileSystem) resolve(name string) (string, bool) {
	if filepath.Separator != '/' && strings.IndexRune(name, filepath.Separator) >= 0 {
		return "", false
	}
	if strings.Contains(name, "\x00") {
		return "", false
	}
	dir := d.Root
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, filepath.FromSlash(slashClean(name))), true
}

// Stat implements FileSystem.
func (d OSFileSystem) Stat(ctx context.Context, name string) (EntityTag, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resolved, ok := d.resolve(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissing, name)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrMissing, name)
		}
		return "", err
	}
	if info.IsDir() {
		return "", nil
	}
	return EntityTag(fmt.Sprintf("%q", fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size()))), nil
}

// slashClean is equivalent to path.Clean("/" + name); kept local to this
// package (rather than importing internal/lockurl) since it is purely a
// native-filesystem path-safety concern, distinct from lockurl's URL
// comparator job.
func slashClean(name string) string {
	if name == "" || name[0] != '/' {
		name = "/" + name
	}
	return path.Clean(name)
}
