package templates

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"whatsapp-templates/internal/models"
)

const (
	MaxButtons       = 3
	MaxBodyLength    = 1024
	MaxHeaderLength  = 60
	MaxFooterLength  = 60
	MaxButtonText    = 25
	MaxDraftKeyLen   = 64
	SetLevelErrorKey = "*"
)

var (
	languagePattern = regexp.MustCompile(`^[a-z]{2,3}(_[A-Z]{2,4})?$`)
	draftKeyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// Error codes carried in models.FieldError.Code.
const (
	CodeRequired       = "required"
	CodeTooLong        = "too_long"
	CodeTooMany        = "too_many"
	CodeInvalid        = "invalid"
	CodeFormat         = "format"
	CodeMissingExample = "missing_example"
	CodeMixedParams    = "mixed_placeholders"
	CodeNonSequential  = "non_sequential"
	CodeParity         = "parity"
	CodeDuplicate      = "duplicate"
)

// ValidateDraftFields checks the draft-level attributes.
func ValidateDraftFields(key string, category models.Category, defaultLanguage string) []models.FieldError {
	var errs []models.FieldError
	switch {
	case key == "":
		errs = append(errs, models.FieldError{Field: "key", Code: CodeRequired, Message: "key is required"})
	case len(key) > MaxDraftKeyLen:
		errs = append(errs, models.FieldError{Field: "key", Code: CodeTooLong, Message: fmt.Sprintf("key must be at most %d characters", MaxDraftKeyLen)})
	case !draftKeyPattern.MatchString(key):
		errs = append(errs, models.FieldError{Field: "key", Code: CodeFormat, Message: "key may only contain lowercase letters, digits and underscores"})
	}
	if !category.Valid() {
		errs = append(errs, models.FieldError{Field: "category", Code: CodeInvalid, Message: "category must be one of UTILITY, MARKETING, AUTHENTICATION"})
	}
	if !languagePattern.MatchString(defaultLanguage) {
		errs = append(errs, models.FieldError{Field: "default_language", Code: CodeFormat, Message: "default language must look like en or en_US"})
	}
	return errs
}

// ValidateVariant checks a single language variant in isolation.
func ValidateVariant(v *models.TemplateVariant) (bool, []models.FieldError) {
	var errs []models.FieldError
	add := func(field, code, msg string) {
		errs = append(errs, models.FieldError{Language: v.Language, Field: field, Code: code, Message: msg})
	}

	if !languagePattern.MatchString(v.Language) {
		add("language", CodeFormat, "language must look like en or en_US")
	}

	if strings.TrimSpace(v.Body) == "" {
		add("body", CodeRequired, "body text is required")
	} else if utf8.RuneCountInString(v.Body) > MaxBodyLength {
		add("body", CodeTooLong, fmt.Sprintf("body text must be at most %d characters", MaxBodyLength))
	}

	kind := v.EffectiveHeaderKind()
	switch {
	case !kind.Valid():
		add("header_kind", CodeInvalid, "header kind must be one of NONE, TEXT, IMAGE, VIDEO, DOCUMENT")
	case kind == models.HeaderText:
		if strings.TrimSpace(v.HeaderText) == "" {
			add("header_text", CodeRequired, "header text is required for a TEXT header")
		} else if utf8.RuneCountInString(v.HeaderText) > MaxHeaderLength {
			add("header_text", CodeTooLong, fmt.Sprintf("header text must be at most %d characters", MaxHeaderLength))
		}
		if len(Placeholders(v.HeaderText)) > 1 {
			add("header_text", CodeTooMany, "header text supports at most one placeholder")
		}
	case kind.IsMedia():
		if strings.TrimSpace(v.HeaderMediaRef) == "" {
			add("header_media_ref", CodeRequired, fmt.Sprintf("a media reference is required for a %s header", kind))
		}
	}

	if utf8.RuneCountInString(v.Footer) > MaxFooterLength {
		add("footer", CodeTooLong, fmt.Sprintf("footer must be at most %d characters", MaxFooterLength))
	}
	if len(Placeholders(v.Footer)) > 0 {
		add("footer", CodeInvalid, "footer cannot contain placeholders")
	}

	if len(v.Buttons) > MaxButtons {
		add("buttons", CodeTooMany, fmt.Sprintf("at most %d buttons are allowed", MaxButtons))
	}
	for i, b := range v.Buttons {
		field := fmt.Sprintf("buttons[%d]", i)
		if strings.TrimSpace(b.Text) == "" {
			add(field+".text", CodeRequired, "button text is required")
		} else if utf8.RuneCountInString(b.Text) > MaxButtonText {
			add(field+".text", CodeTooLong, fmt.Sprintf("button text must be at most %d characters", MaxButtonText))
		}
		switch b.Type {
		case models.ButtonQuickReply:
		case models.ButtonURL:
			if strings.TrimSpace(b.URL) == "" {
				add(field+".url", CodeRequired, "URL buttons require a url")
			}
			for _, tok := range Placeholders(b.URL) {
				if strings.TrimSpace(v.Examples[tok]) == "" {
					add("examples."+tok, CodeMissingExample, fmt.Sprintf("placeholder {{%s}} in %s.url has no example value", tok, field))
				}
			}
		case models.ButtonPhone:
			if strings.TrimSpace(b.Phone) == "" {
				add(field+".phone", CodeRequired, "PHONE buttons require a phone number")
			}
		default:
			add(field+".type", CodeInvalid, "button type must be one of QUICK_REPLY, URL, PHONE")
		}
	}

	errs = append(errs, checkPlaceholders(v, "body", v.Body)...)
	if kind == models.HeaderText {
		errs = append(errs, checkPlaceholders(v, "header_text", v.HeaderText)...)
	}

	return len(errs) == 0, errs
}

func checkPlaceholders(v *models.TemplateVariant, field, text string) []models.FieldError {
	tokens := Placeholders(text)
	if len(tokens) == 0 {
		return nil
	}

	var errs []models.FieldError
	var positional []int
	named := 0
	for _, tok := range tokens {
		if strings.TrimSpace(v.Examples[tok]) == "" {
			errs = append(errs, models.FieldError{
				Language: v.Language,
				Field:    "examples." + tok,
				Code:     CodeMissingExample,
				Message:  fmt.Sprintf("placeholder {{%s}} in %s has no example value", tok, field),
			})
		}
		if IsPositional(tok) {
			n, _ := strconv.Atoi(tok)
			positional = append(positional, n)
		} else {
			named++
		}
	}

	if named > 0 && len(positional) > 0 {
		errs = append(errs, models.FieldError{Language: v.Language, Field: field, Code: CodeMixedParams, Message: "placeholders must be either all numbered or all named"})
		return errs
	}
	sort.Ints(positional)
	for i, n := range positional {
		if n != i+1 {
			errs = append(errs, models.FieldError{Language: v.Language, Field: field, Code: CodeNonSequential, Message: "numbered placeholders must start at {{1}} and have no gaps"})
			break
		}
	}
	return errs
}

// ValidateSet checks every variant and the structural parity between them.
// The first variant is the parity reference.
func ValidateSet(variants []models.TemplateVariant) (bool, map[string][]models.FieldError) {
	result := make(map[string][]models.FieldError)
	if len(variants) == 0 {
		result[SetLevelErrorKey] = []models.FieldError{{Field: "variants", Code: CodeRequired, Message: "at least one language variant is required"}}
		return false, result
	}

	seen := make(map[string]bool, len(variants))
	for i := range variants {
		v := &variants[i]
		if seen[v.Language] {
			result[v.Language] = append(result[v.Language], models.FieldError{Language: v.Language, Field: "language", Code: CodeDuplicate, Message: "language appears more than once"})
			continue
		}
		seen[v.Language] = true
		if ok, errs := ValidateVariant(v); !ok {
			result[v.Language] = append(result[v.Language], errs...)
		}
	}

	ref := &variants[0]
	refShape := shapeOf(ref)
	for i := 1; i < len(variants); i++ {
		v := &variants[i]
		if v.Language == ref.Language {
			continue
		}
		shape := shapeOf(v)
		if !equalStrings(shape.header, refShape.header) {
			result[v.Language] = append(result[v.Language], parityError(v.Language, "header_text", "header placeholders", shape.header, refShape.header, ref.Language))
		}
		if !equalStrings(shape.body, refShape.body) {
			result[v.Language] = append(result[v.Language], parityError(v.Language, "body", "body placeholders", shape.body, refShape.body, ref.Language))
		}
		if !equalStrings(shape.buttons, refShape.buttons) {
			result[v.Language] = append(result[v.Language], parityError(v.Language, "buttons", "button types", shape.buttons, refShape.buttons, ref.Language))
		}
	}

	return len(result) == 0, result
}

// ValidateDraft runs ValidateSet using the draft's default language as the parity reference.
func ValidateDraft(draft *models.TemplateDraft, variants []models.TemplateVariant) (bool, map[string][]models.FieldError) {
	return ValidateSet(ReferenceOrder(draft.DefaultLanguage, variants))
}

// ReferenceOrder returns the variants with the default language first and the rest sorted by language.
func ReferenceOrder(defaultLanguage string, variants []models.TemplateVariant) []models.TemplateVariant {
	ordered := append([]models.TemplateVariant(nil), variants...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if (ordered[i].Language == defaultLanguage) != (ordered[j].Language == defaultLanguage) {
			return ordered[i].Language == defaultLanguage
		}
		return ordered[i].Language < ordered[j].Language
	})
	return ordered
}

type variantShape struct {
	header  []string
	body    []string
	buttons []string
}

func shapeOf(v *models.TemplateVariant) variantShape {
	s := variantShape{body: tokenSet(Placeholders(v.Body))}
	if v.EffectiveHeaderKind() == models.HeaderText {
		s.header = tokenSet(Placeholders(v.HeaderText))
	}
	for _, b := range v.Buttons {
		s.buttons = append(s.buttons, string(b.Type))
	}
	return s
}

func parityError(language, field, what string, got, want []string, refLanguage string) models.FieldError {
	return models.FieldError{
		Language: language,
		Field:    field,
		Code:     CodeParity,
		Message:  fmt.Sprintf("%s %v differ from %s %v", what, got, refLanguage, want),
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
