// Package archive unpacks dataset archives (.tar, .tar.gz, .tgz) into a
// directory. Every entry is validated before the first byte is written.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = errors.New("archive entry escapes destination directory")
	ErrCorrupt       = errors.New("corrupt archive")
)

var gzipMagic = []byte{0x1f, 0x8b}

type Extractor interface {
	Extract(ctx context.Context, src, dst string) error
}

type extractor struct{}

func NewExtractor() Extractor {
	return extractor{}
}

func (extractor) Extract(ctx context.Context, src, dst string) error {
	return Extract(ctx, src, dst)
}

// Extract unpacks src into dst, creating dst if needed. The archive is read
// twice: once to validate every entry and once to write them.
func Extract(ctx context.Context, src, dst string) error {
	v := newValidator()
	if err := walk(ctx, src, v.check); err != nil {
		return err
	}
	if v.entries == 0 {
		return fmt.Errorf("%w: %s has no entries", ErrCorrupt, src)
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("failed to create destination %s: %w", dst, err)
	}

	root, err := os.OpenRoot(dst)
	if err != nil {
		return fmt.Errorf("failed to open destination %s: %w", dst, err)
	}
	defer root.Close()

	w := writer{root: root, dst: dst}

	return walk(ctx, src, w.write)
}

type entryFunc func(hdr *tar.Header, r io.Reader) error

func walk(ctx context.Context, src string, fn entryFunc) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br

	magic, err := br.Peek(len(gzipMagic))
	if err == nil && bytes.Equal(magic, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

type validator struct {
	entries int
	links   map[string]struct{}
}

func newValidator() *validator {
	return &validator{links: make(map[string]struct{})}
}

func (v *validator) check(hdr *tar.Header, _ io.Reader) error {
	v.entries++
	name, err := localName(hdr.Name)
	if err != nil {
		return err
	}

	// Writing beneath an entry that is itself a link would land wherever the
	// link points, so no entry may use a link as a parent directory.
	for dir := filepath.Dir(name); dir != "."; dir = filepath.Dir(dir) {
		if _, ok := v.links[dir]; ok {
			return fmt.Errorf("%w: %q is written through link %q", ErrPathTraversal, hdr.Name, dir)
		}
	}

	switch hdr.Typeflag {
	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return fmt.Errorf("%w: %q links to absolute path %q", ErrPathTraversal, hdr.Name, hdr.Linkname)
		}
		// The OS resolves ".." after following earlier links, so a target
		// that only cleans to a local path can still leave the destination.
		if hasParentRef(hdr.Linkname) || !filepath.IsLocal(filepath.Join(filepath.Dir(name), hdr.Linkname)) {
			return fmt.Errorf("%w: %q links to %q", ErrPathTraversal, hdr.Name, hdr.Linkname)
		}
		v.links[name] = struct{}{}
	case tar.TypeLink:
		if _, err := localName(hdr.Linkname); err != nil {
			return err
		}
		v.links[name] = struct{}{}
	}

	return nil
}

func hasParentRef(target string) bool {
	for _, part := range strings.FieldsFunc(target, func(r rune) bool { return r == '/' || r == filepath.Separator }) {
		if part == ".." {
			return true
		}
	}

	return false
}

func localName(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(name, "./")))
	if name == "" || !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}

	return cleaned, nil
}

type writer struct {
	root *os.Root
	dst  string
}

func (w writer) write(hdr *tar.Header, r io.Reader) error {
	name, err := localName(hdr.Name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return w.mkdirAll(name)
	case tar.TypeReg:
		if err := w.mkdirAll(filepath.Dir(name)); err != nil {
			return err
		}

		return w.writeFile(name, hdr.FileInfo().Mode().Perm(), r)
	case tar.TypeSymlink:
		if err := w.mkdirAll(filepath.Dir(name)); err != nil {
			return err
		}

		return os.Symlink(hdr.Linkname, filepath.Join(w.dst, name))
	case tar.TypeLink:
		if err := w.mkdirAll(filepath.Dir(name)); err != nil {
			return err
		}
		target, _ := localName(hdr.Linkname)

		return os.Link(filepath.Join(w.dst, target), filepath.Join(w.dst, name))
	default:
		// Devices, fifos and pax metadata carry no dataset content.
		return nil
	}
}

func (w writer) writeFile(name string, perm os.FileMode, r io.Reader) error {
	if perm == 0 {
		perm = 0o644
	}
	f, err := w.root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()

		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return f.Close()
}

// mkdirAll creates every missing component of dir beneath the root.
func (w writer) mkdirAll(dir string) error {
	if dir == "." {
		return nil
	}

	var path string
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		path = filepath.Join(path, part)
		if err := w.root.Mkdir(path, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}
	}

	return nil
}
