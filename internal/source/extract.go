package source

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// Extract unpacks the tarball at file into destDir. The compression is
// chosen by file extension. A single top-level directory shared by every
// entry is stripped, as release tarballs wrap their tree in
// <name>-<version>/.
func Extract(file, destDir string) error {
	fh, err := os.Open(file)
	if err != nil {
		return err
	}
	defer fh.Close()

	var r io.Reader
	switch name := strings.ToLower(file); {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		zr, err := gzip.NewReader(fh)
		if err != nil {
			return err
		}
		defer zr.Close()
		r = zr
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		xzr, err := xz.NewReader(fh)
		if err != nil {
			return fmt.Errorf("xz: %w", err)
		}
		r = xzr
	case strings.HasSuffix(name, ".tar"):
		r = fh
	default:
		return fmt.Errorf("unsupported archive %s", filepath.Base(file))
	}

	if err := os.MkdirAll(filepath.Dir(destDir), 0o755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(filepath.Dir(destDir), ".extract-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)
	if err := untar(tar.NewReader(r), staging); err != nil {
		return err
	}

	root := staging
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		root = filepath.Join(staging, entries[0].Name())
	}
	if err := os.RemoveAll(destDir); err != nil {
		return err
	}
	return os.Rename(root, destDir)
}

func untar(tr *tar.Reader, dir string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		name := filepath.FromSlash(strings.TrimPrefix(hdr.Name, "./"))
		if name == "" || name == "." {
			continue
		}
		if !filepath.IsLocal(name) {
			return fmt.Errorf("tar entry %q escapes the archive root", hdr.Name)
		}
		target := filepath.Join(dir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777|0o200)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("write %s: %w", hdr.Name, err)
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil && !os.IsExist(err) {
				return err
			}
		}
	}
}
