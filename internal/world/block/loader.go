package block

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed assets/blocks.json
var defaultCatalogJSON []byte

//go:embed assets/blocks.schema.json
var catalogSchemaJSON string

const catalogSchemaURL = "blocks.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// catalogFile - формат JSON-файла каталога
type catalogFile struct {
	Version int         `json:"version"`
	Blocks  []BlockType `json:"blocks"`
}

func catalogSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(catalogSchemaURL, strings.NewReader(catalogSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("ошибка загрузки схемы каталога: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(catalogSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ParseCatalog проверяет JSON по схеме и строит каталог
func ParseCatalog(data []byte) (*Catalog, error) {
	schema, err := catalogSchema()
	if err != nil {
		return nil, err
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return NewCatalog(file.Blocks)
}

// LoadCatalog читает каталог из файла
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения каталога %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog возвращает встроенный каталог блоков
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogJSON)
}
