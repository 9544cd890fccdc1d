package loader

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/treediff/internal/errors"
	"github.com/vango-dev/treediff/pkg/vdom"
)

// Format is a snapshot encoding.
type Format uint8

const (
	FormatAuto Format = iota // Pick from the name, then the content
	FormatJSON
	FormatYAML
)

// String returns the string representation of the Format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "auto"
	}
}

// ParseFormat parses a format name as accepted by --format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return FormatAuto, errors.New(errors.CodeSourceFormat).
		WithDetail("Unknown format " + strconv.Quote(s) + "; use json or yaml")
}

// DetectFormat picks the format from the file extension, falling back to
// the first non-space byte of data.
func DetectFormat(name string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '{' {
		return FormatJSON, nil
	}
	if bytes.Contains(trimmed, []byte(":")) {
		return FormatYAML, nil
	}
	return FormatAuto, errors.New(errors.CodeSourceFormat).
		WithDetail("Cannot tell the format of " + name)
}

var validate = validator.New()

// Decode parses a snapshot. name is used for format detection and in
// diagnostics. Entries without a key field take the key they are stored
// under; entries without a type are rejected.
func Decode(name string, data []byte, format Format) (*Snapshot, error) {
	if format == FormatAuto {
		f, err := DetectFormat(name, data)
		if err != nil {
			return nil, err
		}
		format = f
	}

	s := &Snapshot{
		Name:      name,
		Format:    format,
		Source:    data,
		Tree:      make(vdom.Tree),
		positions: make(map[string]position),
	}

	var err error
	if format == FormatYAML {
		err = s.decodeYAML()
	} else {
		err = s.decodeJSON()
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// decodeJSON walks the top-level object token by token so each entry's
// offset is known.
func (s *Snapshot) decodeJSON() error {
	if len(bytes.TrimSpace(s.Source)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(s.Source))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return s.syntaxError(err, dec.InputOffset())
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return s.shapeError(0, "a snapshot must be an object mapping keys to nodes")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return s.syntaxError(err, dec.InputOffset())
		}
		key, _ := tok.(string)
		end := dec.InputOffset()
		keyOffset := end - int64(len(strconv.Quote(key)))
		line, col := errors.Position(s.Source, keyOffset)

		if _, dup := s.Tree[key]; dup {
			return errors.New(errors.CodeSnapshotSyntax).
				WithDetail("The entry " + strconv.Quote(key) + " appears twice.").
				WithSource(s.Name, s.Source, line, col)
		}

		// Errors inside an entry are reported at its key.
		var node vdom.Node
		if err := dec.Decode(&node); err != nil {
			var se *json.SyntaxError
			if stderrors.As(err, &se) {
				return errors.New(errors.CodeSnapshotSyntax).
					Wrap(err).
					WithSource(s.Name, s.Source, line, col)
			}
			return errors.New(errors.CodeSnapshotSyntax).
				WithDetail("The entry " + strconv.Quote(key) + " is not a node: " + err.Error()).
				WithSource(s.Name, s.Source, line, col)
		}
		node.Props = normalizeProps(node.Props)

		if err := s.add(key, node, position{line, col}); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return s.syntaxError(err, dec.InputOffset())
	}
	if _, err := dec.Token(); err != io.EOF {
		return s.shapeError(dec.InputOffset(), "unexpected data after the snapshot object")
	}
	return nil
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

func (s *Snapshot) decodeYAML() error {
	var doc yaml.Node
	if err := yaml.Unmarshal(s.Source, &doc); err != nil {
		e := errors.New(errors.CodeSnapshotSyntax).Wrap(err)
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
			line, _ := strconv.Atoi(m[1])
			e.WithSource(s.Name, s.Source, line, 0)
		}
		return e
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return errors.New(errors.CodeSnapshotSyntax).
			WithDetail("A snapshot must be a mapping from keys to nodes.").
			WithSource(s.Name, s.Source, root.Line, root.Column)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		key := k.Value
		pos := position{k.Line, k.Column}

		if _, dup := s.Tree[key]; dup {
			return errors.New(errors.CodeSnapshotSyntax).
				WithDetail("The entry " + strconv.Quote(key) + " appears twice.").
				WithSource(s.Name, s.Source, pos.line, pos.col)
		}

		var node vdom.Node
		if err := v.Decode(&node); err != nil {
			return errors.New(errors.CodeSnapshotSyntax).
				WithDetail("The entry " + strconv.Quote(key) + " is not a node: " + err.Error()).
				WithSource(s.Name, s.Source, pos.line, pos.col)
		}
		node.Props = normalizeProps(node.Props)

		if err := s.add(key, node, pos); err != nil {
			return err
		}
	}
	return nil
}

// add fills a missing key, validates the record and stores it.
func (s *Snapshot) add(key string, node vdom.Node, pos position) error {
	if node.Key == "" {
		node.Key = key
	}
	if err := validate.Struct(node); err != nil {
		return errors.New(errors.CodeInvalidNode).
			WithDetail(fieldMessage(key, err)).
			WithSource(s.Name, s.Source, pos.line, pos.col).
			WithSuggestion(`Give the entry a type, e.g. "type": "Div".`)
	}
	s.Tree[key] = node
	s.positions[key] = pos
	return nil
}

func fieldMessage(key string, err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("The entry %q has no %s.", key, strings.ToLower(fe.Field()))
}

func (s *Snapshot) syntaxError(err error, offset int64) *errors.Error {
	line, col := errors.Position(s.Source, offset)
	return errors.New(errors.CodeSnapshotSyntax).
		Wrap(err).
		WithSource(s.Name, s.Source, line, col)
}

func (s *Snapshot) shapeError(offset int64, detail string) *errors.Error {
	line, col := errors.Position(s.Source, offset)
	return errors.New(errors.CodeSnapshotSyntax).
		WithDetail(detail).
		WithSource(s.Name, s.Source, line, col)
}

// normalizeProps turns decoder-specific values into the plain set the
// reconciler and the wire format expect: int64, float64, string, bool, nil,
// []any and map[string]any.
func normalizeProps(p vdom.Props) vdom.Props {
	if len(p) == 0 {
		return nil
	}
	out := make(vdom.Props, len(p))
	for k, v := range p {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case int:
		return int64(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val)
		}
		return float64(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
