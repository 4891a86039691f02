// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/teradata-labs/graphbus/pkg/artifact"
	"github.com/teradata-labs/graphbus/pkg/types"
)

// JSONSchema is the subset of JSON Schema that method field schemas compile to.
type JSONSchema struct {
	Type       string                 `json:"type,omitempty"`
	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

// jsonType maps a declared field type name to a JSON Schema type. Unknown
// names, "any" included, map to "" (unconstrained).
func jsonType(declared string) string {
	name := strings.ToLower(strings.TrimSpace(declared))
	// generic forms such as list[str] or dict[str, int]
	if i := strings.IndexByte(name, '['); i > 0 {
		name = name[:i]
	}
	switch name {
	case "str", "string":
		return "string"
	case "int", "integer":
		return "integer"
	case "float", "number":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "dict", "object", "map", "mapping":
		return "object"
	case "list", "array", "tuple", "sequence":
		return "array"
	default:
		return ""
	}
}

// CompileFieldSchema converts a declared field schema into an object JSON
// Schema. Every declared field is required; undeclared fields are allowed.
func CompileFieldSchema(fields artifact.FieldSchema) *JSONSchema {
	s := &JSONSchema{
		Type:       "object",
		Properties: make(map[string]*JSONSchema, len(fields)),
		Required:   make([]string, 0, len(fields)),
	}
	for name, declared := range fields {
		s.Properties[name] = &JSONSchema{Type: jsonType(declared)}
		s.Required = append(s.Required, name)
	}
	sort.Strings(s.Required)
	return s
}

// methodValidator holds the compiled input and output schemas of one method.
type methodValidator struct {
	input  *gojsonschema.Schema
	output *gojsonschema.Schema
}

func compileMethod(m *artifact.MethodSchema) (*methodValidator, error) {
	input, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(CompileFieldSchema(m.InputSchema)))
	if err != nil {
		return nil, fmt.Errorf("failed to compile input schema of %s: %w", m.Name, err)
	}
	output, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(CompileFieldSchema(m.OutputSchema)))
	if err != nil {
		return nil, fmt.Errorf("failed to compile output schema of %s: %w", m.Name, err)
	}
	return &methodValidator{input: input, output: output}, nil
}

// validatePayload checks p against s. A nil payload is treated as empty.
func validatePayload(s *gojsonschema.Schema, p types.Payload) error {
	if p == nil {
		p = types.Payload{}
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(p))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, len(result.Errors()))
	for i, re := range result.Errors() {
		problems[i] = re.String()
	}
	return fmt.Errorf("invalid payload: %s", strings.Join(problems, "; "))
}
