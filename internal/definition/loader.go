// Package definition loads survey variants: the ordered question list, the
// profile fields and the texts shown to respondents.
package definition

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/stemsi/medsurvey/internal/model"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition wraps every structural problem found in a definition.
var ErrInvalidDefinition = errors.New("invalid survey definition")

var keyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

var validate = govalidator.New(govalidator.WithRequiredStructEnabled())

// Load returns the built-in survey when path is empty, otherwise the YAML
// definition stored at path. endpoint, when not empty, replaces the
// definition's endpoint.
func Load(path, endpoint string) (*model.Definition, error) {
	var def *model.Definition
	if path == "" {
		def = Builtin()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read definition: %w", err)
		}
		def, err = Parse(data)
		if err != nil {
			return nil, err
		}
	}

	if endpoint != "" {
		def.Endpoint = endpoint
	}
	if def.Endpoint == "" {
		def.Endpoint = DefaultEndpoint
	}
	return def, nil
}

// Parse decodes and validates a YAML definition.
func Parse(data []byte) (*model.Definition, error) {
	var def model.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	applyDefaults(&def)
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks struct constraints, key uniqueness and choice options.
func Validate(def *model.Definition) error {
	if err := validate.Struct(def); err != nil {
		var ve govalidator.ValidationErrors
		if errors.As(err, &ve) {
			problems := make([]string, 0, len(ve))
			for _, fe := range ve {
				problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(problems, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	seen := make(map[string]struct{})
	all := append(append([]model.Field{}, def.Questions...), def.Profile...)
	for _, f := range all {
		if !keyPattern.MatchString(f.Key) {
			return fmt.Errorf("%w: key %q must start with a letter and use letters, digits, '_' or '-'", ErrInvalidDefinition, f.Key)
		}
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("%w: duplicate key %q", ErrInvalidDefinition, f.Key)
		}
		seen[f.Key] = struct{}{}

		switch f.Kind {
		case model.FieldKindChoice:
			if len(f.Options) < 2 {
				return fmt.Errorf("%w: choice field %q needs at least two options", ErrInvalidDefinition, f.Key)
			}
			opts := make(map[string]struct{}, len(f.Options))
			for _, o := range f.Options {
				if _, dup := opts[o]; dup {
					return fmt.Errorf("%w: field %q repeats option %q", ErrInvalidDefinition, f.Key, o)
				}
				opts[o] = struct{}{}
			}
		case model.FieldKindText:
			if len(f.Options) > 0 {
				return fmt.Errorf("%w: text field %q must not declare options", ErrInvalidDefinition, f.Key)
			}
		}
	}
	return nil
}
