package expr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemplateArity is matched by every *TemplateArityError.
var ErrTemplateArity = errors.New("[expr] template placeholder count does not match arguments")

// TemplateArityError reports a template whose {} count differs from its arguments.
type TemplateArityError struct {
	Template     string
	Placeholders int
	Args         int
}

func (e *TemplateArityError) Error() string {
	return fmt.Sprintf("[expr] template %q has %d placeholders but %d arguments", e.Template, e.Placeholders, e.Args)
}

func (e *TemplateArityError) Is(target error) bool {
	return target == ErrTemplateArity
}

// Template is SQL text with {} placeholders substituted left to right by its
// arguments. {{}} renders a literal {}. Arguments that are Expressions render as
// themselves; other values go through the literal synthesizer.
type Template struct {
	text string
	args []any
}

// T builds a Template.
func T(text string, args ...any) Template {
	return Template{text: text, args: args}
}

// Text returns the unrendered template text.
func (t Template) Text() string { return t.text }

// Placeholders counts the {} markers in the template text.
func (t Template) Placeholders() int {
	n := 0

	for i := 0; i < len(t.text); i++ {
		switch {
		case strings.HasPrefix(t.text[i:], "{{}}"):
			i += 3
		case strings.HasPrefix(t.text[i:], "{}"):
			n++
			i++
		}
	}

	return n
}

// Validate checks placeholder arity without rendering.
func (t Template) Validate() error {
	if n := t.Placeholders(); n != len(t.args) {
		return &TemplateArityError{Template: t.text, Placeholders: n, Args: len(t.args)}
	}

	return nil
}

func (t Template) Render(ctx Context, params *Params) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	var (
		out strings.Builder
		arg int
	)

	out.Grow(len(t.text) + 8)

	for i := 0; i < len(t.text); i++ {
		switch {
		case strings.HasPrefix(t.text[i:], "{{}}"):
			out.WriteString("{}")
			i += 3
		case strings.HasPrefix(t.text[i:], "{}"):
			s, err := Emit(ctx, params, t.args[arg], nil)
			if err != nil {
				return "", fmt.Errorf("template %q argument %d: %w", t.text, arg, err)
			}

			out.WriteString(s)
			arg++
			i++
		default:
			out.WriteByte(t.text[i])
		}
	}

	return out.String(), nil
}
