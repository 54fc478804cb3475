package portbus

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// validateArgs checks a command's positional arguments against its registered
// schema, if any. Returns nil when no schema is registered for the command.
func (t *HandlerTable) validateArgs(name string, args []any) error {
	if t == nil {
		return nil
	}
	schema, ok := t.schemas[name]
	if !ok {
		return nil
	}

	// Arguments arrive as CBOR-decoded values; round-trip through JSON to
	// obtain the representation the schema vocabulary is defined over.
	if args == nil {
		args = []any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args for validation: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate args for %q: %w", name, err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("args for %q rejected by schema: %s", name, errs[0].String())
		}
		return fmt.Errorf("args for %q rejected by schema", name)
	}
	return nil
}
