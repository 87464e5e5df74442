package tariff

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Source supplies the decoded tariff tree.
type Source interface {
	Load(ctx context.Context) (map[string]interface{}, error)
	Describe() string
}

// Load reads a tariff from src and validates it. Read failures are reported
// as CONFIG_SOURCE errors and invalid documents as CONFIG_VALIDATION errors.
func Load(ctx context.Context, src Source) (*Document, error) {
	tree, err := src.Load(ctx)
	if err != nil {
		if apperr.KindOf(err) != "" {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindConfigSource, err, "unable to read tariff from "+src.Describe())
	}
	return Parse(tree, src.Describe())
}

// FileSource reads a YAML or JSON tariff file. The format follows the file
// extension.
type FileSource struct {
	Path string
}

// NewFileSource returns a source reading the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Sub-type keys such as "under3.5" contain dots, so viper must not use
	// the dot as its key delimiter.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(s.Path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading tariff file, %w", err)
	}
	return v.AllSettings(), nil
}

// Describe implements Source.
func (s *FileSource) Describe() string {
	return "file:" + s.Path
}

// MapSource serves an already decoded tree.
type MapSource struct {
	Name string
	Tree map[string]interface{}
}

// Load implements Source.
func (s MapSource) Load(ctx context.Context) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Tree, nil
}

// Describe implements Source.
func (s MapSource) Describe() string {
	if s.Name == "" {
		return "memory"
	}
	return s.Name
}

//go:embed default_tariff.yaml
var defaultTariff []byte

// DefaultSource returns the tariff bundled with the binary.
func DefaultSource() (MapSource, error) {
	tree, err := DecodeYAML(defaultTariff)
	if err != nil {
		return MapSource{}, err
	}
	return MapSource{Name: "embedded:default_tariff.yaml", Tree: tree}, nil
}

// Default loads the tariff bundled with the binary.
func Default() (*Document, error) {
	src, err := DefaultSource()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfigSource, err, "unable to decode the bundled tariff")
	}
	return Load(context.Background(), src)
}

// DecodeYAML decodes a YAML tariff document into a tree.
func DecodeYAML(data []byte) (map[string]interface{}, error) {
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("unable to decode tariff yaml, %w", err)
	}
	return tree, nil
}

// EncodeYAML renders a document tree as YAML.
func EncodeYAML(doc *Document) ([]byte, error) {
	return yaml.Marshal(doc.Export())
}
