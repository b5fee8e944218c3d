package templates

import (
	"whatsapp-templates/internal/models"
	wire "whatsapp-templates/pkg/models"
)

const (
	ParameterFormatPositional = "POSITIONAL"
	ParameterFormatNamed      = "NAMED"
)

// BuildInput is the internal representation of one variant's content.
type BuildInput struct {
	HeaderKind        models.HeaderKind
	HeaderText        string
	HeaderMediaHandle string
	Body              string
	Footer            string
	Buttons           []models.Button
	Examples          map[string]string
}

// InputFromVariant assembles a BuildInput from a stored variant and an uploaded media handle.
func InputFromVariant(v *models.TemplateVariant, mediaHandle string) BuildInput {
	return BuildInput{
		HeaderKind:        v.EffectiveHeaderKind(),
		HeaderText:        v.HeaderText,
		HeaderMediaHandle: mediaHandle,
		Body:              v.Body,
		Footer:            v.Footer,
		Buttons:           v.Buttons,
		Examples:          v.Examples,
	}
}

// ExamplesPayload lists example values in the order the provider expects them.
type ExamplesPayload struct {
	Header []wire.NamedParam `json:"header,omitempty"`
	Body   []wire.NamedParam `json:"body,omitempty"`
}

// RenderedPreview is the variant with example values substituted. Never submitted.
type RenderedPreview struct {
	Header  string   `json:"header,omitempty"`
	Body    string   `json:"body"`
	Footer  string   `json:"footer,omitempty"`
	Buttons []string `json:"buttons,omitempty"`
}

type BuildResult struct {
	// Components keep the original placeholder tokens and are what gets submitted.
	Components      []wire.TemplateComponent `json:"components"`
	Examples        ExamplesPayload          `json:"examples"`
	Preview         RenderedPreview          `json:"preview"`
	ParameterFormat string                   `json:"parameter_format,omitempty"`
}

// Build converts a variant into provider components: header, body, footer, buttons.
func Build(in BuildInput) BuildResult {
	var res BuildResult
	named := false

	switch kind := in.HeaderKind; {
	case kind == models.HeaderText:
		comp := wire.TemplateComponent{Type: "HEADER", Format: "TEXT", Text: in.HeaderText}
		params := exampleParams(Placeholders(in.HeaderText), in.Examples)
		if len(params) > 0 {
			if IsPositional(params[0].ParamName) {
				comp.Example = &wire.ComponentExample{HeaderText: paramValues(params)}
			} else {
				named = true
				comp.Example = &wire.ComponentExample{HeaderTextNamedParams: params}
			}
		}
		res.Examples.Header = params
		res.Components = append(res.Components, comp)
		res.Preview.Header = Substitute(in.HeaderText, in.Examples)
	case kind.IsMedia():
		comp := wire.TemplateComponent{Type: "HEADER", Format: string(kind)}
		if in.HeaderMediaHandle != "" {
			comp.Example = &wire.ComponentExample{HeaderHandle: []string{in.HeaderMediaHandle}}
		}
		res.Components = append(res.Components, comp)
		res.Preview.Header = "[" + string(kind) + "]"
	}

	body := wire.TemplateComponent{Type: "BODY", Text: in.Body}
	params := exampleParams(Placeholders(in.Body), in.Examples)
	if len(params) > 0 {
		if IsPositional(params[0].ParamName) {
			body.Example = &wire.ComponentExample{BodyText: [][]string{paramValues(params)}}
		} else {
			named = true
			body.Example = &wire.ComponentExample{BodyTextNamedParams: params}
		}
	}
	res.Examples.Body = params
	res.Components = append(res.Components, body)
	res.Preview.Body = Substitute(in.Body, in.Examples)

	if in.Footer != "" {
		res.Components = append(res.Components, wire.TemplateComponent{Type: "FOOTER", Text: in.Footer})
		res.Preview.Footer = in.Footer
	}

	if len(in.Buttons) > 0 {
		comp := wire.TemplateComponent{Type: "BUTTONS"}
		for _, b := range in.Buttons {
			btn := wire.TemplateButton{Type: wireButtonType(b.Type), Text: b.Text}
			switch b.Type {
			case models.ButtonURL:
				btn.URL = b.URL
				if len(Placeholders(b.URL)) > 0 {
					btn.Example = []string{Substitute(b.URL, in.Examples)}
				}
			case models.ButtonPhone:
				btn.PhoneNumber = b.Phone
			}
			comp.Buttons = append(comp.Buttons, btn)
			res.Preview.Buttons = append(res.Preview.Buttons, b.Text)
		}
		res.Components = append(res.Components, comp)
	}

	if len(res.Examples.Header)+len(res.Examples.Body) > 0 {
		res.ParameterFormat = ParameterFormatPositional
		if named {
			res.ParameterFormat = ParameterFormatNamed
		}
	}
	return res
}

func exampleParams(tokens []string, examples map[string]string) []wire.NamedParam {
	if len(tokens) == 0 {
		return nil
	}
	ordered := orderedTokens(tokens)
	out := make([]wire.NamedParam, 0, len(ordered))
	for _, tok := range ordered {
		out = append(out, wire.NamedParam{ParamName: tok, Example: examples[tok]})
	}
	return out
}

func paramValues(params []wire.NamedParam) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Example
	}
	return out
}

func wireButtonType(t models.ButtonType) string {
	if t == models.ButtonPhone {
		return "PHONE_NUMBER"
	}
	return string(t)
}
