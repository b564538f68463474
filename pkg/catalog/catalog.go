// Package catalog loads and indexes the static registry of tool operations
// that retrieval and generation draw from. The catalog file is read once at
// startup; entries are immutable afterwards.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/flowgen/pkg/models"
)

// catalogSchema validates the raw catalog file before any entry is indexed.
// A malformed catalog is a deployment error and must fail startup loudly.
const catalogSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name", "slug", "operations"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"slug": {"type": "string", "minLength": 1},
			"displayName": {"type": "string"},
			"category": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}},
			"authConfig": {
				"type": "object",
				"properties": {"type": {"type": "string"}}
			},
			"operations": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["name", "slug"],
					"properties": {
						"name": {"type": "string", "minLength": 1},
						"slug": {"type": "string", "minLength": 1},
						"displayName": {"type": "string"},
						"description": {"type": "string"},
						"operationType": {"type": "string", "enum": ["action", "trigger"]},
						"useCases": {"type": "array", "items": {"type": "string"}},
						"semanticKeywords": {"type": "array", "items": {"type": "string"}},
						"inputSchema": {
							"type": "array",
							"items": {
								"type": "object",
								"required": ["name"],
								"properties": {
									"name": {"type": "string", "minLength": 1},
									"type": {"type": "string"},
									"description": {"type": "string"},
									"required": {"type": "boolean"}
								}
							}
						}
					}
				}
			}
		}
	}
}`

// Tool mirrors one entry of the catalog file.
type Tool struct {
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	DisplayName string      `json:"displayName"`
	Category    string      `json:"category"`
	Tags        []string    `json:"tags"`
	AuthConfig  AuthConfig  `json:"authConfig"`
	Operations  []Operation `json:"operations"`
}

// AuthConfig describes how a tool authenticates. Only the type matters here:
// "none" marks tools usable without credentials.
type AuthConfig struct {
	Type string `json:"type"`
}

// Operation mirrors one operation entry of a catalog tool.
type Operation struct {
	Name             string       `json:"name"`
	Slug             string       `json:"slug"`
	DisplayName      string       `json:"displayName"`
	Description      string       `json:"description"`
	OperationType    string       `json:"operationType"`
	UseCases         []string     `json:"useCases"`
	SemanticKeywords []string     `json:"semanticKeywords"`
	InputSchema      []InputField `json:"inputSchema"`
}

// InputField is one parameter of an operation as declared in the catalog.
type InputField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Catalog indexes tool operations by identifier, tool and category.
type Catalog struct {
	logger     *slog.Logger
	operations []models.ToolOperation
	byID       map[string]int
	byTool     map[string][]int
}

// Load reads, validates and indexes the catalog file at path.
func Load(path string, logger *slog.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	catalog, err := Parse(data, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog file %s: %w", path, err)
	}

	return catalog, nil
}

// Parse validates raw catalog JSON and indexes its operations.
func Parse(data []byte, logger *slog.Logger) (*Catalog, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(catalogSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("catalog schema validation: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(details, "; "))
	}

	var tools []Tool
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("catalog parse: %w", err)
	}

	catalog := &Catalog{
		logger: logger.With("module", "catalog"),
		byID:   make(map[string]int),
		byTool: make(map[string][]int),
	}

	for _, tool := range tools {
		for _, operation := range tool.Operations {
			entry := newToolOperation(tool, operation)

			if err := entry.Validate(); err != nil {
				return nil, err
			}

			if _, exists := catalog.byID[entry.ID]; exists {
				return nil, fmt.Errorf("%w: duplicate operation %q", ErrInvalidCatalog, entry.ID)
			}

			index := len(catalog.operations)
			catalog.operations = append(catalog.operations, entry)
			catalog.byID[entry.ID] = index
			catalog.byTool[tool.Slug] = append(catalog.byTool[tool.Slug], index)
		}
	}

	if len(catalog.operations) == 0 {
		return nil, fmt.Errorf("%w: no operations defined", ErrInvalidCatalog)
	}

	catalog.logger.Info("Catalog loaded", "tools", len(tools), "operations", len(catalog.operations))

	return catalog, nil
}

func newToolOperation(tool Tool, operation Operation) models.ToolOperation {
	operationType := models.OperationType(operation.OperationType)
	if operationType == "" {
		operationType = models.OperationTypeAction
	}

	entry := models.ToolOperation{
		ID:                   models.OperationID(tool.Slug, operation.Slug),
		ToolSlug:             tool.Slug,
		ToolName:             tool.Name,
		ToolDisplayName:      displayNameOr(tool.DisplayName, tool.Name),
		OperationSlug:        operation.Slug,
		OperationName:        operation.Name,
		OperationDisplayName: displayNameOr(operation.DisplayName, operation.Name),
		Category:             tool.Category,
		Type:                 operationType,
		Description:          operation.Description,
		UseCases:             operation.UseCases,
		Keywords:             operation.SemanticKeywords,
		Tags:                 tool.Tags,
		AuthRequired:         tool.AuthConfig.Type != "" && tool.AuthConfig.Type != "none",
	}

	if len(operation.InputSchema) > 0 {
		entry.Parameters = parameterSchema(operation.InputSchema)

		for _, field := range operation.InputSchema {
			if field.Required {
				entry.RequiredFields = append(entry.RequiredFields, field.Name)
			}
		}
	}

	return entry
}

func parameterSchema(fields []InputField) *models.JSONSchema {
	schema := &models.JSONSchema{
		Type:       "object",
		Properties: make(map[string]*models.Property, len(fields)),
	}

	for _, field := range fields {
		fieldType := field.Type
		if fieldType == "" {
			fieldType = "string"
		}

		schema.Properties[field.Name] = &models.Property{
			Type:        fieldType,
			Description: field.Description,
		}

		if field.Required {
			schema.Required = append(schema.Required, field.Name)
		}
	}

	return schema
}

func displayNameOr(displayName, fallback string) string {
	if displayName != "" {
		return displayName
	}

	return fallback
}

// All returns every indexed operation in catalog order.
func (c *Catalog) All() []models.ToolOperation {
	operations := make([]models.ToolOperation, len(c.operations))
	copy(operations, c.operations)

	return operations
}

// ByID looks up an operation by its namespaced identifier.
func (c *Catalog) ByID(id string) (models.ToolOperation, bool) {
	index, ok := c.byID[id]
	if !ok {
		return models.ToolOperation{}, false
	}

	return c.operations[index], true
}

// ByTool returns all operations of one tool.
func (c *Catalog) ByTool(toolSlug string) []models.ToolOperation {
	indexes, ok := c.byTool[toolSlug]
	if !ok {
		return nil
	}

	operations := make([]models.ToolOperation, 0, len(indexes))
	for _, index := range indexes {
		operations = append(operations, c.operations[index])
	}

	return operations
}

// ByCategory returns all operations whose tool belongs to the category.
func (c *Catalog) ByCategory(category string) []models.ToolOperation {
	var operations []models.ToolOperation

	for _, operation := range c.operations {
		if operation.Category == category {
			operations = append(operations, operation)
		}
	}

	return operations
}

// Len returns the number of indexed operations.
func (c *Catalog) Len() int {
	return len(c.operations)
}

// ErrInvalidCatalog is returned when the catalog file fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")
