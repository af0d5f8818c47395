// Command generate-schema writes the JSON schema of the mdus configuration
// file, for editor completion and validation of config.yaml.
//
// Usage:
//
//	generate-schema [output]   (default: config.schema.json, "-" for stdout)
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/mdus/pkg/config"
)

const defaultOutput = "config.schema.json"

func main() {
	output := defaultOutput
	if len(os.Args) > 1 {
		output = os.Args[1]
	}

	if err := run(output, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "generate-schema: %v\n", err)
		os.Exit(1)
	}
}

func run(output string, stdout io.Writer) error {
	schemaJSON, err := generate()
	if err != nil {
		return err
	}

	if output == "-" {
		_, err := stdout.Write(append(schemaJSON, '\n'))
		return err
	}

	if err := os.WriteFile(output, schemaJSON, 0644); err != nil {
		return fmt.Errorf("writing schema file: %w", err)
	}

	fmt.Fprintf(stdout, "JSON schema written to %s\n", output)
	return nil
}

// generate reflects config.Config into an indented JSON schema. Keys follow
// the yaml tags, so the schema matches what InitConfig writes.
func generate() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "mdus Configuration"
	schema.Description = "Configuration schema for the mdus file server"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	return data, nil
}
