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
package artifact

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[string]*gojsonschema.Schema
)

// schemaFiles maps an artifact file to its embedded meta-schema.
var schemaFiles = map[string]string{
	AgentsFile: "schemas/agents.schema.json",
	GraphFile:  "schemas/graph.schema.json",
	TopicsFile: "schemas/topics.schema.json",
}

func compileSchemas() (map[string]*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemas = make(map[string]*gojsonschema.Schema, len(schemaFiles))
		for file, name := range schemaFiles {
			raw, err := schemaFS.ReadFile(name)
			if err != nil {
				schemaErr = fmt.Errorf("failed to read embedded schema %s: %w", name, err)
				return
			}
			s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
			if err != nil {
				schemaErr = fmt.Errorf("failed to compile embedded schema %s: %w", name, err)
				return
			}
			schemas[file] = s
		}
	})
	return schemas, schemaErr
}

// validateDocument checks a decoded artifact document against the meta-schema
// of file. All violations are reported in a single ErrSchemaMismatch.
func validateDocument(file string, doc interface{}) error {
	compiled, err := compileSchemas()
	if err != nil {
		return err
	}
	s, ok := compiled[file]
	if !ok {
		return nil
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &Error{Kind: ErrSchemaMismatch, File: file, Detail: "schema validation failed", Err: err}
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, len(result.Errors()))
	for i, re := range result.Errors() {
		problems[i] = re.String()
	}
	return &Error{Kind: ErrSchemaMismatch, File: file, Detail: strings.Join(problems, "; ")}
}
