package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"github.com/texlate/texlate/engine/core"
	"github.com/texlate/texlate/engine/document"
	"github.com/texlate/texlate/pkg/logger"
)

// TexPattern matches every LaTeX source below a directory.
const TexPattern = "**/*.tex"

// Workspace owns the on-disk layout of a job: pristine sources, the working
// copy that is translated in place, and the published artifacts. Source trees
// are keyed by job id so concurrent jobs on one document never share a tree.
type Workspace struct {
	fs        afero.Fs
	workDir   string
	outputDir string
	suffix    string
}

func NewWorkspace(fs afero.Fs, workDir, outputDir, suffix string) *Workspace {
	return &Workspace{fs: fs, workDir: workDir, outputDir: outputDir, suffix: suffix}
}

func (w *Workspace) Fs() afero.Fs {
	return w.fs
}

// RawDir holds the unpacked archive of jobID exactly as downloaded.
func (w *Workspace) RawDir(jobID string) string {
	return filepath.Join(w.workDir, "raw", "job-"+jobID)
}

// Dir is the working copy of jobID that gets translated and built.
func (w *Workspace) Dir(jobID string) string {
	return filepath.Join(w.workDir, "job-"+jobID)
}

// Prepare unpacks archive into a fresh raw dir for jobID and stages a working
// copy of it, returning the working dir.
func (w *Workspace) Prepare(ctx context.Context, archive, jobID string) (string, error) {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || jobID == "." || jobID == ".." {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	raw := w.RawDir(jobID)
	work := w.Dir(jobID)
	if err := w.Discard(jobID); err != nil {
		return "", err
	}
	if err := Extract(w.fs, archive, raw); err != nil {
		return "", err
	}
	if err := w.copyTree(raw, work); err != nil {
		return "", err
	}
	logger.FromContext(ctx).Debug("workspace prepared", "dir", work)
	return work, nil
}

// Discard removes both source trees of jobID.
func (w *Workspace) Discard(jobID string) error {
	for _, dir := range []string{w.RawDir(jobID), w.Dir(jobID)} {
		if err := w.fs.RemoveAll(dir); err != nil {
			return fmt.Errorf("clearing %s: %w", dir, err)
		}
	}
	return nil
}

func (w *Workspace) copyTree(src, dst string) error {
	return afero.Walk(w.fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return w.fs.MkdirAll(target, 0o755)
		}
		return w.copyFile(p, target)
	})
}

func (w *Workspace) copyFile(src, dst string) error {
	in, err := w.fs.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()
	if err := w.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := w.fs.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

// replaceFile writes r to a temp file next to dst and renames it into place,
// so readers of dst never observe a partial write.
func replaceFile(fs afero.Fs, dst string, r io.Reader) error {
	dir := filepath.Dir(dst)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", dst, err)
	}
	name := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		_ = fs.Remove(name)
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(name)
		return err
	}
	if err := fs.Rename(name, dst); err != nil {
		_ = fs.Remove(name)
		return fmt.Errorf("replacing %s: %w", dst, err)
	}
	return nil
}

// Enumerate lists the files below dir matching pattern, sorted.
func (w *Workspace) Enumerate(dir, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}
	var files []string
	err := afero.Walk(w.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); ok {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// FindMain returns the LaTeX file declaring \documentclass. When several do,
// the last one in sorted order wins.
func (w *Workspace) FindMain(dir string) (string, error) {
	files, err := w.Enumerate(dir, TexPattern)
	if err != nil {
		return "", err
	}
	var main string
	for _, f := range files {
		content, err := w.ReadFile(f)
		if err != nil {
			return "", err
		}
		if document.HasDocumentClass(content) {
			main = f
		}
	}
	if main == "" {
		return "", core.NewError(
			fmt.Errorf("no file in %s declares \\documentclass", dir),
			core.StructureNotFound,
			map[string]any{"dir": dir, "candidates": len(files)},
		)
	}
	return main, nil
}

func (w *Workspace) ReadFile(name string) (string, error) {
	b, err := afero.ReadFile(w.fs, name)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return string(b), nil
}

func (w *Workspace) WriteFile(name, content string) error {
	if err := afero.WriteFile(w.fs, name, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// ArtifactName is the published file name of documentID's build.
func (w *Workspace) ArtifactName(documentID string) string {
	return SafeID(documentID) + w.suffix + ".pdf"
}

// PublishArtifact copies a built PDF into the output dir and returns its
// published name. Jobs on the same document replace each other's artifact
// atomically.
func (w *Workspace) PublishArtifact(artifact, documentID string) (string, error) {
	in, err := w.fs.Open(artifact)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", artifact, err)
	}
	defer in.Close()
	name := w.ArtifactName(documentID)
	if err := replaceFile(w.fs, filepath.Join(w.outputDir, name), in); err != nil {
		return "", err
	}
	return name, nil
}

// OpenArtifact opens a published artifact by name. Names must not contain
// path separators.
func (w *Workspace) OpenArtifact(name string) (afero.File, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, os.ErrNotExist
	}
	return w.fs.Open(filepath.Join(w.outputDir, name))
}
