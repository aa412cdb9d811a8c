package extract

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// TarExtractor unpacks a plain, uncompressed .tar archive.
type TarExtractor struct{}

func (TarExtractor) Extract(ctx context.Context, archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening tar %s: %w", archivePath, err)
	}
	defer f.Close()
	return extractTarStream(f, dest)
}

// TarGzExtractor unpacks .tar.gz / .tgz archives.
type TarGzExtractor struct{}

func (TarGzExtractor) Extract(ctx context.Context, archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening tar.gz %s: %w", archivePath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	return extractTarStream(gz, dest)
}

// TarBz2Extractor unpacks .tar.bz2 / .tbz2 archives. bzip2 support is
// decode-only, matching the only direction modda ever needs.
type TarBz2Extractor struct{}

func (TarBz2Extractor) Extract(ctx context.Context, archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening tar.bz2 %s: %w", archivePath, err)
	}
	defer f.Close()

	return extractTarStream(bzip2.NewReader(f), dest)
}

// TarXzExtractor unpacks .tar.xz / .txz archives.
type TarXzExtractor struct{}

func (TarXzExtractor) Extract(ctx context.Context, archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening tar.xz %s: %w", archivePath, err)
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening xz stream: %w", err)
	}
	return extractTarStream(xr, dest)
}

func extractTarStream(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		if hdr.Typeflag == tar.TypeSymlink || hdr.Typeflag == tar.TypeLink {
			return fmt.Errorf("archive entry %q is a symlink, which is rejected", hdr.Name)
		}

		target, err := SafeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent for %s: %w", target, err)
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode)|0o200)
			if err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("writing %s: %w", target, err)
			}
			out.Close()
		}
	}
}
