package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/taylored/runnerd/pkg/log"
	"github.com/taylored/runnerd/pkg/types"
)

// Messages surfaced to the client on filesystem failures.
const (
	msgAccessDenied = "Access denied: Path is outside the allowed directory."
	msgReadFailed   = "Failed to read file."
	msgPathRequired = "A file path is required for downloadFile."
)

// FSAccessor serves directory listings and file downloads, confined to a
// single root directory.
type FSAccessor struct {
	root   string
	logger zerolog.Logger
}

// NewFSAccessor creates an accessor rooted at root. Relative request paths
// resolve against it and nothing outside it is ever served.
func NewFSAccessor(root string) *FSAccessor {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return &FSAccessor{
		root:   filepath.Clean(abs),
		logger: log.WithComponent("fs"),
	}
}

var errPathEscapes = errors.New("path escapes root")

// resolve maps a client path to an absolute path under the root. Containment
// is checked on path segment boundaries, so a sibling like /data-other does
// not pass for root /data. Traversal is rejected on the raw request path
// before normalization: a ".." segment that crosses the root boundary is
// denied even when the cleaned result would land back inside the root.
// Without the raw check, a root of "/" would accept "/../etc" because it
// cleans to "/etc".
func (f *FSAccessor) resolve(reqPath string) (string, error) {
	p := reqPath
	if p == "" {
		p = "."
	}

	raw := p
	if filepath.IsAbs(p) {
		var err error
		raw, err = trimRoot(f.root, p)
		if err != nil {
			return "", err
		}
	}
	if crossesRoot(raw) {
		return "", errPathEscapes
	}

	full := filepath.Clean(filepath.Join(f.root, raw))
	rel, err := filepath.Rel(f.root, full)
	if err != nil {
		return "", errPathEscapes
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errPathEscapes
	}
	return full, nil
}

// trimRoot strips the root prefix from an absolute path, on a segment
// boundary.
func trimRoot(root, p string) (string, error) {
	if p == root {
		return ".", nil
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(p, prefix) {
		return "", errPathEscapes
	}
	return p[len(prefix):], nil
}

// crossesRoot walks the raw segments and reports whether a ".." ever ascends
// past the starting point.
func crossesRoot(raw string) bool {
	depth := 0
	for _, seg := range strings.Split(raw, string(filepath.Separator)) {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		default:
			depth++
		}
	}
	return false
}

// ListDirectory emits a directoryListing event for the requested path, or a
// tayloredRunError when the path is denied or unreadable.
func (f *FSAccessor) ListDirectory(emit Emitter, reqPath string) {
	target, err := f.resolve(reqPath)
	if err != nil {
		f.logger.Warn().Str("path", reqPath).Msg("directory listing denied")
		f.emitError(emit, msgAccessDenied)
		return
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		f.logger.Warn().Err(err).Str("path", target).Msg("directory listing failed")
		f.emitError(emit, fmt.Sprintf("Failed to list directory: %s", reqPath))
		return
	}

	files := make([]types.DirEntry, 0, len(entries))
	for _, e := range entries {
		files = append(files, types.DirEntry{
			Name:        e.Name(),
			IsDirectory: e.IsDir(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	if err := emit.Emit(types.EventDirectoryListing, types.DirectoryListing{
		Path:  target,
		Files: files,
	}); err != nil {
		f.logger.Debug().Err(err).Msg("failed to emit directory listing")
	}
}

// DownloadFile emits a fileContent event carrying the raw bytes of the
// requested regular file. The echoed path is the client's original request
// path so the receiver can correlate.
func (f *FSAccessor) DownloadFile(emit Emitter, reqPath string) {
	if reqPath == "" {
		f.emitError(emit, msgPathRequired)
		return
	}

	target, err := f.resolve(reqPath)
	if err != nil {
		f.logger.Warn().Str("path", reqPath).Msg("file download denied")
		f.emitError(emit, msgAccessDenied)
		return
	}

	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		f.logger.Warn().Err(err).Str("path", target).Msg("file download failed")
		f.emitError(emit, msgReadFailed)
		return
	}

	content, err := os.ReadFile(target)
	if err != nil {
		f.logger.Warn().Err(err).Str("path", target).Msg("file read failed")
		f.emitError(emit, msgReadFailed)
		return
	}

	if err := emit.Emit(types.EventFileContent, types.FileContent{
		Path:    reqPath,
		Content: content,
	}); err != nil {
		f.logger.Debug().Err(err).Msg("failed to emit file content")
	}
}

func (f *FSAccessor) emitError(emit Emitter, msg string) {
	if err := emit.Emit(types.EventTayloredRunError, types.RunError{Error: msg}); err != nil {
		f.logger.Debug().Err(err).Msg("failed to emit error")
	}
}
