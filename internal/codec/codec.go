// Package codec provides structured-data serialization over the atomic
// replace core. Each codec pairs a marshal/unmarshal implementation with the
// file extensions it claims, and Dump/Load route a value through the
// orchestrator so structured writes get the same lock-and-rename guarantees
// as raw ones.
package codec

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/safewrite/internal/atomic"
	swerrors "github.com/Iron-Ham/safewrite/internal/errors"
	"github.com/Iron-Ham/safewrite/internal/lockfile"
)

// Codec marshals values to and from one serialization format.
type Codec interface {
	// Name identifies the format ("yaml", "json", ...).
	Name() string
	// Extensions lists the file extensions (with leading dot) this codec
	// claims for routing.
	Extensions() []string
	// Marshal encodes v.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}

type yamlCodec struct{}

func (yamlCodec) Name() string                       { return "yaml" }
func (yamlCodec) Extensions() []string               { return []string{".yaml", ".yml"} }
func (yamlCodec) Marshal(v any) ([]byte, error)      { return yaml.Marshal(v) }
func (yamlCodec) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

type jsonCodec struct{}

func (jsonCodec) Name() string         { return "json" }
func (jsonCodec) Extensions() []string { return []string{".json"} }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type tomlCodec struct{}

func (tomlCodec) Name() string                       { return "toml" }
func (tomlCodec) Extensions() []string               { return []string{".toml"} }
func (tomlCodec) Marshal(v any) ([]byte, error)      { return toml.Marshal(v) }
func (tomlCodec) Unmarshal(data []byte, v any) error { return toml.Unmarshal(data, v) }

type gobCodec struct{}

func (gobCodec) Name() string         { return "gob" }
func (gobCodec) Extensions() []string { return []string{".gob", ".bin"} }

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// codecs in registration order; first extension match wins.
var codecs = []Codec{yamlCodec{}, jsonCodec{}, tomlCodec{}, gobCodec{}}

// ByName returns the codec with the given name.
func ByName(name string) (Codec, error) {
	for _, c := range codecs {
		if c.Name() == strings.ToLower(name) {
			return c, nil
		}
	}
	return nil, swerrors.NewValidationError("unknown format").
		WithField("format").WithValue(name)
}

// ForPath routes a file path to a codec by extension.
func ForPath(path string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, c := range codecs {
		for _, e := range c.Extensions() {
			if e == ext {
				return c, nil
			}
		}
	}
	return nil, swerrors.NewValidationError("no codec for file extension").
		WithField("path").WithValue(path)
}

// Names returns the available format names, for CLI help text.
func Names() []string {
	names := make([]string, len(codecs))
	for i, c := range codecs {
		names[i] = c.Name()
	}
	return names
}

// Dump marshals v with the codec for target's extension and writes it
// through the orchestrator's locked atomic replace.
func Dump(ctx context.Context, o *atomic.Orchestrator, target string, v any, mode lockfile.Mode, label string) error {
	c, err := ForPath(target)
	if err != nil {
		return err
	}
	data, err := c.Marshal(v)
	if err != nil {
		return swerrors.Wrapf(err, "failed to marshal %s", c.Name())
	}
	return o.WriteFile(ctx, target, data, mode, label)
}

// Load reads target through the orchestrator and unmarshals it into v with
// the codec for target's extension.
func Load(o *atomic.Orchestrator, target string, v any) error {
	c, err := ForPath(target)
	if err != nil {
		return err
	}
	data, err := o.ReadFile(target)
	if err != nil {
		return err
	}
	if err := c.Unmarshal(data, v); err != nil {
		return swerrors.Wrapf(err, "failed to unmarshal %s", c.Name())
	}
	return nil
}
