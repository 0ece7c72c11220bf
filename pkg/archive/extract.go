// Package archive unpacks downloaded builds and patches.
// It supports .zip, .tar, .tar.gz, .tgz, and .tar.zst formats.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Format identifies an archive container.
type Format string

const (
	FormatUnknown Format = ""
	FormatZip     Format = "zip"
	FormatTar     Format = "tar"
	FormatTarGz   Format = "tar.gz"
	FormatTarZst  Format = "tar.zst"
)

// Detect returns the format of a file based on its name.
func Detect(filename string) Format {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return FormatZip
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(name, ".tar.zst"):
		return FormatTarZst
	case strings.HasSuffix(name, ".tar"):
		return FormatTar
	default:
		return FormatUnknown
	}
}

// SupportedExtensions returns a list of all file extensions that can be extracted.
func SupportedExtensions() []string {
	return []string{".zip", ".tar", ".tar.gz", ".tgz", ".tar.zst"}
}

// IsSupported returns true if the filename has a supported archive extension.
func IsSupported(filename string) bool {
	return Detect(filename) != FormatUnknown
}

// Extract extracts the contents of the archive at src into the directory dest.
// Existing files in dest are overwritten, which lets patches overlay an install.
// It returns the number of regular files written.
func Extract(ctx context.Context, src string, dest string) (int, error) {
	format := Detect(src)
	if format == FormatZip {
		return extractZip(ctx, src, dest)
	}
	if format == FormatUnknown {
		return 0, fmt.Errorf("unsupported archive format: %s", src)
	}

	f, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch format {
	case FormatTarGz:
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzr.Close()
		r = gzr
	case FormatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	return extractTar(ctx, r, dest)
}

func extractZip(ctx context.Context, src, dest string) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer r.Close()

	written := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := extractEntry(f.Name, f.FileInfo(), dest, f.Open)
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

func extractTar(ctx context.Context, r io.Reader, dest string) (int, error) {
	tr := tar.NewReader(r)
	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		header, err := tr.Next()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("failed to read tar header: %w", err)
		}

		switch header.Typeflag {
		case tar.TypeDir, tar.TypeReg:
		default:
			// links and device nodes are not part of game builds
			continue
		}

		n, err := extractEntry(header.Name, header.FileInfo(), dest, func() (io.ReadCloser, error) {
			return io.NopCloser(tr), nil
		})
		if err != nil {
			return written, err
		}
		written += n
	}
}

// extractEntry writes a single file or directory below dest.
func extractEntry(name string, info os.FileInfo, dest string, open func() (io.ReadCloser, error)) (int, error) {
	target := filepath.Join(dest, name)
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return 0, fmt.Errorf("illegal file path in archive: %s", name)
	}

	if info.IsDir() {
		if err := os.MkdirAll(target, 0755); err != nil {
			return 0, fmt.Errorf("failed to create directory %s: %w", target, err)
		}
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, fmt.Errorf("failed to create parent directory for %s: %w", target, err)
	}

	mode := info.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", target, err)
	}
	defer f.Close()

	rc, err := open()
	if err != nil {
		return 0, fmt.Errorf("failed to open archive entry %s: %w", name, err)
	}
	defer rc.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return 0, fmt.Errorf("failed to write file %s: %w", target, err)
	}
	return 1, nil
}
