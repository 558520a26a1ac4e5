// Package builder assembles package archives and computes their content hash.
package builder

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
)

// Artifact is a built package archive on disk.
type Artifact struct {
	// Path is the location of the gzip'd tar archive.
	Path string
	// Size is the compressed archive size in bytes.
	Size int64
}

// Remove deletes the archive file. Safe to call on a zero Artifact.
func (a *Artifact) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	return os.Remove(a.Path)
}

// Build assembles the package rooted at the manifest's directory into a
// gzip'd tar archive and returns it with its content hash.
//
// The archive is canonical: entries are sorted by path, timestamps are
// zeroed, and ownership is cleared, so identical trees produce identical
// hashes. The hash is computed over the uncompressed tar stream, making it
// independent of compression settings. Hidden entries, dot-prefixed files
// and directories alike, are excluded.
func Build(ctx context.Context, manifestPath string) (*Artifact, digest.Digest, error) {
	root := filepath.Dir(manifestPath)

	entries, err := collectEntries(root)
	if err != nil {
		return nil, "", fmt.Errorf("failed to scan package directory: %w", err)
	}

	out, err := os.CreateTemp("", "parcel-build-*.tar.gz")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create archive file: %w", err)
	}

	hash, err := writeArchive(ctx, out, root, entries)
	if err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, "", err
	}

	info, err := out.Stat()
	if err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, "", fmt.Errorf("failed to stat archive: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return nil, "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	return &Artifact{Path: out.Name(), Size: info.Size()}, hash, nil
}

// collectEntries lists regular files under root, sorted for determinism.
// Dot-prefixed names are skipped, whether file or directory.
func collectEntries(root string) ([]string, error) {
	var entries []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		hidden := strings.HasPrefix(d.Name(), ".") && path != root
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)
	return entries, nil
}

func writeArchive(ctx context.Context, out io.Writer, root string, entries []string) (digest.Digest, error) {
	digester := digest.SHA256.Digester()

	gz := gzip.NewWriter(out)
	// The tar stream goes to the digester uncompressed and to the
	// archive through gzip.
	tw := tar.NewWriter(io.MultiWriter(gz, digester.Hash()))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		path := filepath.Join(root, filepath.FromSlash(entry))
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", entry, err)
		}

		hdr := &tar.Header{
			Name:    entry,
			Mode:    int64(info.Mode().Perm()),
			Size:    info.Size(),
			ModTime: time.Unix(0, 0),
			Format:  tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return "", fmt.Errorf("failed to write archive header for %s: %w", entry, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", entry, err)
		}
		_, err = io.Copy(tw, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("failed to archive %s: %w", entry, err)
		}
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to close compressor: %w", err)
	}

	return digester.Digest(), nil
}
