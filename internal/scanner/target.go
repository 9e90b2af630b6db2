package scanner

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidArgument is returned for a target with no content to scan: a nil
// buffer or an empty path.
var ErrInvalidArgument = errors.New("invalid scan input")

// IOError reports a file target that could not be opened or read.
type IOError struct {
	Path     string
	NotFound bool
	Err      error
}

func (e *IOError) Error() string {
	if e.NotFound {
		return "file not found: " + e.Path
	}
	return fmt.Sprintf("file unreadable: %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Target represents a file or in-memory buffer to be scanned.
type Target struct {
	Path    string
	RelPath string
	Data    []byte
	buffer  bool
}

// FileTarget returns a target that streams the file at path.
func FileTarget(path string) *Target {
	return &Target{Path: path, RelPath: path}
}

// BufferTarget returns a target over data. A nil slice is an invalid
// argument; an empty one is a valid zero-length target.
func BufferTarget(data []byte) *Target {
	return &Target{Data: data, buffer: true}
}

// IsBuffer reports whether the target is an in-memory buffer.
func (t *Target) IsBuffer() bool { return t.buffer }

// Name is the label used in results and logs.
func (t *Target) Name() string {
	switch {
	case t.buffer:
		return "<buffer>"
	case t.RelPath != "":
		return t.RelPath
	default:
		return t.Path
	}
}

// Open returns a reader over the target content. Errors are either
// ErrInvalidArgument or an *IOError.
func (t *Target) Open() (io.ReadCloser, error) {
	if t.buffer {
		if t.Data == nil {
			return nil, ErrInvalidArgument
		}
		return io.NopCloser(bytes.NewReader(t.Data)), nil
	}
	if t.Path == "" {
		return nil, ErrInvalidArgument
	}

	f, err := os.Open(t.Path)
	if err != nil {
		return nil, &IOError{Path: t.Path, NotFound: errors.Is(err, fs.ErrNotExist), Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &IOError{Path: t.Path, Err: err}
	}
	if info.IsDir() {
		f.Close()
		return nil, &IOError{Path: t.Path, Err: errors.New("is a directory")}
	}
	return f, nil
}

// TargetDiscovery walks a directory and returns scannable targets.
type TargetDiscovery struct {
	IgnorePatterns []string
}

// Discover walks root and returns all targets, respecting .shabariignore.
func (td *TargetDiscovery) Discover(root string) ([]*Target, error) {
	td.loadIgnoreFile(root)

	var targets []*Target
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if d.IsDir() {
			base := d.Name()
			if path != root && (base == ".git" || base == "node_modules" || base == ".shabari") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		relPath, _ := filepath.Rel(root, path)
		relPath = filepath.ToSlash(relPath)
		if relPath == ignoreFile || td.isIgnored(relPath) {
			return nil
		}
		targets = append(targets, &Target{
			Path:    path,
			RelPath: relPath,
		})
		return nil
	})
	return targets, err
}

const ignoreFile = ".shabariignore"

func (td *TargetDiscovery) loadIgnoreFile(root string) {
	f, err := os.Open(filepath.Join(root, ignoreFile))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			td.IgnorePatterns = append(td.IgnorePatterns, line)
		}
	}
}

func (td *TargetDiscovery) isIgnored(relPath string) bool {
	for _, pattern := range td.IgnorePatterns {
		if matchGlob(pattern, relPath) {
			return true
		}
	}
	return false
}

// matchGlob supports ** globs that filepath.Match does not.
// "dir/**" matches any file under dir/ at any depth.
// "**/*.bin" matches any .bin file at any depth.
func matchGlob(pattern, relPath string) bool {
	if !strings.Contains(pattern, "**") {
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(relPath)); matched {
			return true
		}
		return false
	}

	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		if strings.HasPrefix(relPath, prefix+"/") || relPath == prefix {
			return true
		}
	}

	if suffix, ok := strings.CutPrefix(pattern, "**/"); ok && matchAnySuffix(suffix, relPath) {
		return true
	}

	if prefix, suffix, ok := strings.Cut(pattern, "/**/"); ok {
		if rest, ok := strings.CutPrefix(relPath, prefix+"/"); ok && matchAnySuffix(suffix, rest) {
			return true
		}
	}

	return false
}

// matchAnySuffix matches glob against path and every trailing sub-path of it.
func matchAnySuffix(glob, path string) bool {
	parts := strings.Split(path, "/")
	for i := range parts {
		if matched, _ := filepath.Match(glob, strings.Join(parts[i:], "/")); matched {
			return true
		}
	}
	return false
}
