package source

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/texlate/texlate/engine/core"
)

// sniffLen is how many leading bytes are used to detect a payload type.
const sniffLen = 3072

// singleFileName is used when the archive is a lone gzip'd document.
const singleFileName = "main.tex"

// maxEntrySize caps the unpacked size of a single archive entry.
var maxEntrySize int64 = 256 << 20

// ErrEntryTooLarge is returned when an entry unpacks past maxEntrySize.
var ErrEntryTooLarge = errors.New("archive entry too large")

// Extract unpacks archive into dest. Gzip'd tarballs, plain tarballs and a
// gzip'd single file are accepted; anything else, such as a PDF-only
// submission, fails with StructureNotFound.
func Extract(fs afero.Fs, archive, dest string) error {
	f, err := fs.Open(archive)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()
	if err := fs.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating extract dir: %w", err)
	}
	r := bufio.NewReaderSize(f, sniffLen)
	head, _ := r.Peek(sniffLen)
	mt := mimetype.Detect(head)
	switch {
	case mt.Is("application/gzip"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return unsupported(archive, mt.String(), err)
		}
		defer zr.Close()
		inner := bufio.NewReaderSize(zr, sniffLen)
		innerHead, _ := inner.Peek(sniffLen)
		if mimetype.Detect(innerHead).Is("application/x-tar") {
			return untar(fs, inner, dest)
		}
		return writeFile(fs, filepath.Join(dest, singleFileName), inner)
	case mt.Is("application/x-tar"):
		return untar(fs, r, dest)
	default:
		return unsupported(archive, mt.String(), nil)
	}
}

func unsupported(archive, mime string, cause error) error {
	err := fmt.Errorf("archive %s of type %s has no LaTeX sources", archive, mime)
	if cause != nil {
		err = fmt.Errorf("%w: %w", err, cause)
	}
	return core.NewError(err, core.StructureNotFound, map[string]any{"mime": mime})
}

func untar(fs afero.Fs, r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}
		target, err := entryPath(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(fs, target, tr); err != nil {
				return err
			}
		default:
			// links and devices are not needed to build a paper
		}
	}
}

// entryPath resolves name inside dest and rejects entries escaping it.
func entryPath(dest, name string) (string, error) {
	rel := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("archive entry %q escapes the extract dir", name)
	}
	if rel == "." {
		return dest, nil
	}
	return filepath.Join(dest, filepath.FromSlash(rel)), nil
}

func writeFile(fs afero.Fs, target string, r io.Reader) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}
	out, err := fs.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	n, err := io.Copy(out, io.LimitReader(r, maxEntrySize+1))
	if err != nil {
		out.Close()
		return fmt.Errorf("unpacking %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	if n > maxEntrySize {
		_ = fs.Remove(target)
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrEntryTooLarge, target, maxEntrySize)
	}
	return nil
}
