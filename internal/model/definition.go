package model

// FieldKind distinguishes free-text inputs from single-choice inputs.
type FieldKind string

const (
	FieldKindText   FieldKind = "text"
	FieldKindChoice FieldKind = "choice"
)

// Field describes one input of a survey: a quiz question or a profile field.
type Field struct {
	Key         string    `json:"key" yaml:"key" validate:"required,max=64"`
	Label       string    `json:"label" yaml:"label" validate:"required"`
	Kind        FieldKind `json:"kind" yaml:"kind" validate:"required,oneof=text choice"`
	Options     []string  `json:"options,omitempty" yaml:"options" validate:"omitempty,dive,required"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder"`
	// InputType is the HTML input type hint for text fields (e.g. "tel").
	InputType string `json:"input_type,omitempty" yaml:"input_type" validate:"omitempty,oneof=text tel email number"`
}

// IsChoice reports whether the field only accepts one of its options.
func (f Field) IsChoice() bool {
	return f.Kind == FieldKindChoice
}

// HasOption reports whether value is one of the field's option literals.
func (f Field) HasOption(value string) bool {
	for _, o := range f.Options {
		if o == value {
			return true
		}
	}
	return false
}

// Messages holds the user-facing texts of a survey variant.
type Messages struct {
	ChoiceIncomplete  string `json:"choice_incomplete" yaml:"choice_incomplete"`
	TextIncomplete    string `json:"text_incomplete" yaml:"text_incomplete"`
	ProfileIncomplete string `json:"profile_incomplete" yaml:"profile_incomplete"`

	SuccessTitle       string `json:"success_title" yaml:"success_title"`
	SuccessDescription string `json:"success_description" yaml:"success_description"`
	// SuccessDurationMS is how long the success toast stays visible.
	SuccessDurationMS int `json:"success_duration_ms" yaml:"success_duration_ms" validate:"gte=0"`

	Rejected        string `json:"rejected" yaml:"rejected"`
	TransportFailed string `json:"transport_failed" yaml:"transport_failed"`
}

// Definition is one survey variant: its ordered quiz questions, the
// respondent profile fields and where submissions are delivered.
type Definition struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Title       string   `json:"title" yaml:"title" validate:"required"`
	Description string   `json:"description" yaml:"description"`
	Endpoint    string   `json:"-" yaml:"endpoint" validate:"omitempty,url"`
	Questions   []Field  `json:"questions" yaml:"questions" validate:"required,min=1,dive"`
	Profile     []Field  `json:"profile" yaml:"profile" validate:"required,min=1,dive"`
	Messages    Messages `json:"messages" yaml:"messages"`
}

// Keys returns every field key in submission order: questions first, then profile.
func (d *Definition) Keys() []string {
	keys := make([]string, 0, len(d.Questions)+len(d.Profile))
	for _, q := range d.Questions {
		keys = append(keys, q.Key)
	}
	for _, p := range d.Profile {
		keys = append(keys, p.Key)
	}
	return keys
}

// Field looks a field up by key across questions and profile.
func (d *Definition) Field(key string) (Field, bool) {
	for _, q := range d.Questions {
		if q.Key == key {
			return q, true
		}
	}
	for _, p := range d.Profile {
		if p.Key == key {
			return p, true
		}
	}
	return Field{}, false
}
