package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/johnmschoonover/tmplview/internal/document"
)

// mappingFile is the on-disk shape of the context mapping file:
//
//	contexts:
//	  templates/welcome.html: data/welcome.json
//	  templates/report.tmpl: data/report.json
type mappingFile struct {
	Contexts map[string]string `yaml:"contexts"`
}

// ContextResolver pairs template documents with their context documents.
type ContextResolver struct {
	mappings map[string]string // template key -> context path
	sidecar  bool
}

// NewContextResolver loads cfg's mapping file, if configured. Mapping
// file paths are resolved relative to the file's own directory.
func NewContextResolver(cfg ContextsConfig) (*ContextResolver, error) {
	r := &ContextResolver{
		mappings: make(map[string]string),
		sidecar:  cfg.Sidecar,
	}

	if cfg.MappingFile == "" {
		return r, nil
	}

	raw, err := os.ReadFile(cfg.MappingFile)
	if err != nil {
		return nil, fmt.Errorf("reading context mapping file: %w", err)
	}

	var parsed mappingFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing context mapping file %s: %w", cfg.MappingFile, err)
	}

	base := filepath.Dir(cfg.MappingFile)
	for template, context := range parsed.Contexts {
		if !filepath.IsAbs(template) {
			template = filepath.Join(base, template)
		}
		if !filepath.IsAbs(context) {
			context = filepath.Join(base, context)
		}
		r.mappings[document.Key(template)] = context
	}
	return r, nil
}

// Resolve returns the context document for templatePath, or "" when none
// applies. Explicit mappings win over the sidecar convention; a sidecar
// is only used when the file actually exists.
func (r *ContextResolver) Resolve(templatePath string) string {
	if context, ok := r.mappings[document.Key(templatePath)]; ok {
		return context
	}

	if r.sidecar {
		sidecar := sidecarPath(templatePath)
		if info, err := os.Stat(sidecar); err == nil && !info.IsDir() {
			return sidecar
		}
	}
	return ""
}

// sidecarPath maps templates/welcome.html to templates/welcome.html.json.
func sidecarPath(templatePath string) string {
	if strings.EqualFold(filepath.Ext(templatePath), ".json") {
		return ""
	}
	return templatePath + ".json"
}
