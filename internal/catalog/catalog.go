// Package catalog provides the versioned container that font-sources writes
// and reads: a list of discovered font sources tagged with a format version.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"
	"sigs.k8s.io/yaml"

	"github.com/fontcatalog/font-sources/internal/sources"
	"github.com/fontcatalog/font-sources/internal/versions"
)

const (
	// CurrentVersion is the version written by Encode
	CurrentVersion = "1.0"
	// SupportedMajorVersion is the highest major version Decode accepts
	SupportedMajorVersion = 1

	schemaURL = "catalog.schema.json"
)

var (
	// ErrInvalidCatalog is returned when data is not a well formed catalog
	ErrInvalidCatalog = errors.New("invalid catalog")
	// ErrUnknownFormat is returned for an output format other than json, yaml or list
	ErrUnknownFormat = errors.New("unknown output format")
)

//go:embed catalog.schema.json
var schemaJSON []byte

// Format is an output encoding
type Format string

const (
	// FormatJSON is indented JSON
	FormatJSON Format = "json"
	// FormatYAML is YAML with the same field names as the JSON encoding
	FormatYAML Format = "yaml"
	// FormatList is one repository URL per line
	FormatList Format = "list"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatList:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// UnsupportedVersionError is returned when a catalog's major version is
// newer than this tool understands
type UnsupportedVersionError struct {
	Version string
}

// Error implements the error interface
func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported catalog version %s: major version %d or lower required",
		e.Version, SupportedMajorVersion)
}

// Catalog is the versioned list of font sources
type Catalog struct {
	Version string               `json:"version"`
	Sources []sources.FontSource `json:"sources"`
}

// New creates a catalog at the current version
func New(srcs []sources.FontSource) *Catalog {
	if srcs == nil {
		srcs = []sources.FontSource{}
	}
	return &Catalog{Version: CurrentVersion, Sources: srcs}
}

// Encode writes the catalog to w. The version written is always CurrentVersion.
func (c *Catalog) Encode(w io.Writer, format Format) error {
	out := New(c.Sources)

	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal catalog: %w", err)
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal catalog: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatList:
		var buf bytes.Buffer
		for i := range out.Sources {
			buf.WriteString(out.Sources[i].RepoURL())
			buf.WriteByte('\n')
		}
		_, err := w.Write(buf.Bytes())
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Decode parses a catalog from JSON or YAML. JSON input may carry comments
// and trailing commas, which is convenient for hand-written catalogs.
func Decode(data []byte) (*Catalog, error) {
	doc, err := toJSON(data)
	if err != nil {
		return nil, err
	}

	version := gjson.GetBytes(doc, "version")
	if !version.Exists() {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidCatalog)
	}
	if err := checkVersion(version.String()); err != nil {
		return nil, err
	}

	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	var c Catalog
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if c.Sources == nil {
		c.Sources = []sources.FontSource{}
	}
	return &c, nil
}

// Load reads and decodes the catalog at path
func Load(path string) (*Catalog, error) {
	// #nosec G304 -- path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return c, nil
}

// WriteFile encodes the catalog to path, replacing any existing file atomically
func (c *Catalog) WriteFile(path string, format Format) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf, format); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write to temporary file first for atomic operation
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write temporary catalog file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename catalog file: %w", err)
	}
	return nil
}

func toJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidCatalog)
	}

	if trimmed[0] == '{' {
		doc, err := hujson.Standardize(bytes.Clone(trimmed))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
		}
		return doc, nil
	}

	doc, err := yaml.YAMLToJSON(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if !gjson.ParseBytes(doc).IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidCatalog)
	}
	return doc, nil
}

func checkVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: bad version %q: %w", ErrInvalidCatalog, version, err)
	}
	if v.Major() > SupportedMajorVersion {
		return &UnsupportedVersionError{Version: version}
	}
	if versions.IsNewerVersion(v.String(), CurrentVersion+".0") {
		slog.Debug("Catalog has a newer minor version, unknown fields are ignored",
			"version", version,
			"current", CurrentVersion)
	}
	return nil
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

func validateSchema(doc []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile catalog schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return nil
}
