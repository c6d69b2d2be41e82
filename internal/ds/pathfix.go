package ds

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// FixFilename joins a logical slash-separated path P onto root and
// normalises it for the host path separator. Prepending "./" to P before
// joining stops an absolute-looking P from discarding root entirely.
func FixFilename(root, p string) string {
	return filepath.Clean(filepath.Join(root, "."+string(filepath.Separator)+filepath.FromSlash(p)))
}

// WriteFile writes content to the fixed path root/p on fs, creating any
// missing parent directories. A pre-existing directory is not an error; any
// other filesystem failure is returned as-is.
func WriteFile(fs afero.Fs, root, p string, content []byte) (string, error) {
	full := FixFilename(root, p)
	dir := filepath.Dir(full)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := afero.WriteFile(fs, full, content, 0o644); err != nil {
		return "", err
	}
	return full, nil
}
