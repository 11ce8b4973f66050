package cfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format is a serialization format for descriptions and result trees.
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "msgpack", "mp":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unknown format %q", name)
	}
}

// FormatFromPath picks the format matching a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer format of %s: no extension", path)
	}
	return ParseFormat(ext)
}

// Marshal encodes v in format f.
func Marshal(v interface{}, f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		return yaml.Marshal(v)
	case FormatJSON:
		return json.MarshalIndent(v, "", "  ")
	case FormatMsgpack:
		var buf bytes.Buffer
		if err := msgpack.NewEncoder(&buf).Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}

// Unmarshal decodes data in format f into v.
func Unmarshal(data []byte, f Format, v interface{}) error {
	switch f {
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	case FormatJSON:
		return json.Unmarshal(data, v)
	case FormatMsgpack:
		return msgpack.Unmarshal(data, v)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

// Decode reads a description in format f from r.
func Decode(r io.Reader, f Format) (*Description, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading description: %w", err)
	}
	var d Description
	if err := Unmarshal(data, f, &d); err != nil {
		return nil, fmt.Errorf("decoding %s description: %w", f, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Encode writes d to w in format f.
func Encode(w io.Writer, d *Description, f Format) error {
	data, err := Marshal(d, f)
	if err != nil {
		return fmt.Errorf("encoding %s description: %w", f, err)
	}
	_, err = w.Write(data)
	return err
}

// Load reads a description file, picking the format from its extension.
func Load(path string) (*Description, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening description: %w", err)
	}
	defer file.Close()

	d, err := Decode(file, f)
	if err != nil {
		return nil, fmt.Errorf("loading description %s: %w", path, err)
	}
	return d, nil
}
