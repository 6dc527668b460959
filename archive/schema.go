package archive

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed population.schema.json
var schemaJSON string

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	sch, err := jsonschema.CompileString("population.schema.json", schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
})

// Validate checks a raw document against the embedded schema.
func Validate(data []byte) error {
	sch, err := compileSchema()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: decoding json: %w", ErrInvalid, err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%w: schema: %w", ErrInvalid, err)
	}
	return nil
}
