package ds

import (
	"fmt"
	"io"
)

// ManifestEntry records which files a single BND3 container contributed.
type ManifestEntry struct {
	Container string
	Children  []string
}

// Manifest is an ordered record of container -> children associations built
// during the dispatcher's BND3 recursion pass, plus a trailing list of
// injected custom files (SPEC_FULL.md §3, §4.6 step 5).
type Manifest struct {
	Entries     []ManifestEntry
	CustomFiles []string
}

// AddContainer appends a container -> children entry.
func (m *Manifest) AddContainer(container string, children []string) {
	m.Entries = append(m.Entries, ManifestEntry{Container: container, Children: children})
}

// AddCustomFile records an injected replacement file.
func (m *Manifest) AddCustomFile(path string) {
	m.CustomFiles = append(m.CustomFiles, path)
}

// WriteTo renders the manifest as human-readable text (bnd_manifest.txt).
func (m *Manifest) WriteTo(w io.Writer) error {
	for _, e := range m.Entries {
		if _, err := fmt.Fprintf(w, "%s\n", e.Container); err != nil {
			return err
		}
		for _, child := range e.Children {
			if _, err := fmt.Fprintf(w, "  %s\n", child); err != nil {
				return err
			}
		}
	}
	if len(m.CustomFiles) > 0 {
		if _, err := fmt.Fprintf(w, "-- Custom --\n"); err != nil {
			return err
		}
		for _, f := range m.CustomFiles {
			if _, err := fmt.Fprintf(w, "  %s\n", f); err != nil {
				return err
			}
		}
	}
	return nil
}
