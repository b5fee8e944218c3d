package templates

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	apperrors "whatsapp-templates/internal/errors"
)

const (
	// MaxNameLength is the provider's hard limit on template names.
	MaxNameLength   = 25
	DefaultMaxProbe = 1000
	randomAttempts  = 5
	randomSuffixLen = 4
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// NameLookup answers whether a tenant already holds a template name in a language.
type NameLookup interface {
	NameTaken(ctx context.Context, tenantID, name, language string) (bool, error)
}

type Availability struct {
	Name       string `json:"name"`
	Language   string `json:"language"`
	Available  bool   `json:"available"`
	Suggestion string `json:"suggestion,omitempty"`
}

type NameResolver struct {
	lookup       NameLookup
	maxProbe     int
	randomSuffix func() string
}

func NewNameResolver(lookup NameLookup) *NameResolver {
	return &NameResolver{
		lookup:       lookup,
		maxProbe:     DefaultMaxProbe,
		randomSuffix: randomSuffix,
	}
}

// ComputeName derives the public template name. The draft key is the canonical name.
func (r *NameResolver) ComputeName(draftKey, tenantID string) string {
	return strings.ToLower(strings.TrimSpace(draftKey))
}

// ValidateName enforces the provider's name syntax locally.
func ValidateName(name string) error {
	switch {
	case name == "":
		return apperrors.NewValidationError("name", CodeRequired, "template name is required")
	case len(name) > MaxNameLength:
		return apperrors.NewValidationError("name", CodeTooLong, fmt.Sprintf("template name must be at most %d characters", MaxNameLength))
	case !namePattern.MatchString(name):
		return apperrors.NewValidationError("name", CodeFormat, "template name must start with a letter and contain only lowercase letters, digits and underscores")
	}
	return nil
}

// CheckAvailability reports whether name is free for tenant+language and, if not, suggests
// name_2, name_3, ... up to the probe ceiling, then a random suffix.
func (r *NameResolver) CheckAvailability(ctx context.Context, tenantID, name, language string) (*Availability, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	res := &Availability{Name: name, Language: language}

	taken, err := r.lookup.NameTaken(ctx, tenantID, name, language)
	if err != nil {
		return nil, fmt.Errorf("check name %s: %w", name, err)
	}
	if !taken {
		res.Available = true
		return res, nil
	}

	for i := 2; i <= r.maxProbe; i++ {
		candidate := withSuffix(name, "_"+strconv.Itoa(i))
		free, err := r.free(ctx, tenantID, candidate, language)
		if err != nil {
			return nil, err
		}
		if free {
			res.Suggestion = candidate
			return res, nil
		}
	}

	for i := 0; i < randomAttempts; i++ {
		candidate := withSuffix(name, "_"+r.randomSuffix())
		free, err := r.free(ctx, tenantID, candidate, language)
		if err != nil {
			return nil, err
		}
		if free {
			res.Suggestion = candidate
			return res, nil
		}
	}
	return res, nil
}

func (r *NameResolver) free(ctx context.Context, tenantID, name, language string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	taken, err := r.lookup.NameTaken(ctx, tenantID, name, language)
	if err != nil {
		return false, fmt.Errorf("check name %s: %w", name, err)
	}
	return !taken, nil
}

// withSuffix appends suffix, trimming the base so the result fits MaxNameLength.
func withSuffix(base, suffix string) string {
	if room := MaxNameLength - len(suffix); len(base) > room {
		base = strings.TrimRight(base[:room], "_")
	}
	return base + suffix
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix() string {
	b := make([]byte, randomSuffixLen)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}
