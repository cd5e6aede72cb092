package configs

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// OntologyDefaults embeds the canonical ServiceType/Field description set
// (§4.1, §C) that InstallOntologyDefaults writes out when any trackerd
// command opens its stack against an Ontology.DescriptionDir holding no
// .description file.
//
//go:embed ontology/*.description
var OntologyDefaults embed.FS

// InstallOntologyDefaults copies every embedded .description file into dir
// if it doesn't already contain one, so a fresh install has a working
// ServiceType/Field catalogue without requiring the operator to author
// their own description files first.
func InstallOntologyDefaults(dir string) error {
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			if filepath.Ext(e.Name()) == ".description" {
				return nil
			}
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("configs: create ontology dir %s: %w", dir, err)
	}

	return fs.WalkDir(OntologyDefaults, "ontology", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := OntologyDefaults.ReadFile(path)
		if err != nil {
			return err
		}
		dest := filepath.Join(dir, filepath.Base(path))
		return os.WriteFile(dest, data, 0o644)
	})
}
