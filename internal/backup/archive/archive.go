// Package archive builds and unpacks the tar.gz site archives the
// storage providers ship around.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Build streams the given files into a gzip-compressed tar archive at
// dst. Entry names are the cleaned relative forms of the input paths.
// Returns the archive size and the number of files archived. Any
// failure is a hard failure: the partial archive at dst is the
// caller's to remove.
func Build(dst string, files []string) (int64, int, error) {
	if len(files) == 0 {
		return 0, 0, fmt.Errorf("no files to archive")
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, 0, fmt.Errorf("create archive file: %w", err)
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	count := 0
	for _, file := range files {
		if err := addFile(tw, file); err != nil {
			tw.Close()
			gz.Close()
			out.Close()
			return 0, 0, fmt.Errorf("archive %s: %w", file, err)
		}
		count++
	}

	if err := tw.Close(); err != nil {
		gz.Close()
		out.Close()
		return 0, 0, fmt.Errorf("finalize tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return 0, 0, fmt.Errorf("finalize gzip: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, 0, fmt.Errorf("close archive file: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return 0, 0, fmt.Errorf("stat archive: %w", err)
	}
	return info.Size(), count, nil
}

func addFile(tw *tar.Writer, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory")
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = EntryName(file)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// EntryName converts a local path into the archive entry name: cleaned,
// forward slashes, no leading separators or dot segments.
func EntryName(p string) string {
	name := filepath.ToSlash(filepath.Clean(p))
	name = strings.TrimPrefix(name, "/")
	for strings.HasPrefix(name, "../") {
		name = strings.TrimPrefix(name, "../")
	}
	return name
}

// Extract unpacks the tar.gz at src into destDir. When only is
// non-empty, extraction is limited to entries whose name matches one
// of them. Entry paths are confined to destDir. Returns the number of
// files written.
func Extract(src, destDir string, only []string) (int, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("read gzip header: %w", err)
	}
	defer gz.Close()

	wanted := map[string]bool{}
	for _, name := range only {
		wanted[EntryName(name)] = true
	}

	tr := tar.NewReader(gz)
	count := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if len(wanted) > 0 && !wanted[hdr.Name] {
			continue
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return count, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return count, fmt.Errorf("create directory for %s: %w", hdr.Name, err)
		}

		dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
		if err != nil {
			return count, fmt.Errorf("create %s: %w", hdr.Name, err)
		}
		if _, err := io.Copy(dst, tr); err != nil {
			dst.Close()
			return count, fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		if err := dst.Close(); err != nil {
			return count, fmt.Errorf("close %s: %w", hdr.Name, err)
		}
		count++
	}
	return count, nil
}

// ExtractSingle pulls one named entry out of a serialized tar.gz.
func ExtractSingle(archive []byte, path string) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("read gzip header: %w", err)
	}
	defer gz.Close()

	want := EntryName(path)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("file %s not found in backup", path)
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Typeflag == tar.TypeReg && hdr.Name == want {
			return io.ReadAll(tr)
		}
	}
}

// CopyTree copies every file under src into dst, preserving relative
// paths and file modes.
func CopyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}

// safeJoin joins name under dir, rejecting entries that would escape it.
func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}
