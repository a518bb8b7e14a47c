package curriculum

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOptions controls how authoring defects are treated.
type LoadOptions struct {
	// Strict makes dangling prerequisites and cycles a load error instead of a warning.
	Strict bool

	// Logger receives load warnings and the summary line. Nil means slog.Default().
	Logger *slog.Logger
}

func (o LoadOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Load reads every curriculum YAML document under path (a file or a
// directory walked in lexical order) and builds the graph.
func Load(path string, opts LoadOptions) (*Graph, error) {
	logger := opts.logger()
	docs, err := readDocuments(logger, path)
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	g, err := NewGraph(docs...)
	if err != nil {
		return nil, fmt.Errorf("building curriculum graph: %w", err)
	}

	if err := g.Validate(); err != nil {
		if opts.Strict {
			return nil, fmt.Errorf("validating curriculum: %w", err)
		}
		logDefects(logger, err)
	}

	logger.Info("curriculum loaded", "topics", g.Len(), "stages", len(g.stages), "files", len(docs))
	return g, nil
}

// logDefects warns once per defect inside a joined validation error.
func logDefects(logger *slog.Logger, err error) {
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		logger.Warn("curriculum defect", "error", err)
		return
	}
	for _, e := range joined.Unwrap() {
		logger.Warn("curriculum defect", "error", e)
	}
}

func readDocuments(logger *slog.Logger, root string) ([]Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		doc, ok, err := readDocument(logger, root)
		if err != nil || !ok {
			return nil, err
		}
		return []Document{doc}, nil
	}

	var docs []Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		doc, ok, err := readDocument(logger, path)
		if err != nil {
			return err
		}
		if ok {
			docs = append(docs, doc)
		}
		return nil
	})
	return docs, err
}

// readDocument returns ok=false for YAML files that are not curriculum documents.
func readDocument(logger *slog.Logger, path string) (Document, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Document{}, false, fmt.Errorf("%s: %w", path, err)
	}
	if _, ok := raw["stages"]; !ok {
		logger.Warn("skipping non-curriculum YAML", "path", path)
		return Document{}, false, nil
	}
	if err := validateDocument(raw); err != nil {
		return Document{}, false, fmt.Errorf("%s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, false, fmt.Errorf("%s: %w", path, err)
	}
	return doc, true, nil
}

// Parse builds a graph from a single in-memory YAML document.
func Parse(data []byte) (*Graph, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return NewGraph(doc)
}
