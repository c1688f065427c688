package automation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxTitleLength    = 100
	maxDescriptionLen = 500
	maxSteps          = 50
	maxConfigKeys     = 20
	maxTags           = 10
	maxTagLength      = 30

	// maxDelayMS bounds delay step configuration (2 minutes). Longer
	// delays belong in scheduled automations, not tap-triggered ones.
	maxDelayMS = 120000

	// idPattern is the canonical UUID grammar. Resolution refuses
	// anything else; uuid.Parse is too permissive (it accepts URN and
	// unhyphenated forms that never appear in generated links).
	idPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`
)

var idRegex = regexp.MustCompile(idPattern)

// Pre-computed sets for O(1) lookups.
var (
	validKinds        map[StepKind]struct{}
	validCategories   map[Category]struct{}
	validVisibilities map[Visibility]struct{}
)

func init() {
	validKinds = make(map[StepKind]struct{}, len(AllStepKinds()))
	for _, k := range AllStepKinds() {
		validKinds[k] = struct{}{}
	}
	validCategories = make(map[Category]struct{}, len(AllCategories()))
	for _, c := range AllCategories() {
		validCategories[c] = struct{}{}
	}
	validVisibilities = make(map[Visibility]struct{}, len(AllVisibilities()))
	for _, v := range AllVisibilities() {
		validVisibilities[v] = struct{}{}
	}
}

// ValidateID checks an id against the canonical UUID grammar.
// Returns ErrMalformedID on failure.
func ValidateID(id string) error {
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	return nil
}

// ValidateAutomation performs comprehensive validation on an automation.
// Returns an error describing the first validation failure found.
func ValidateAutomation(a *AutomationSummary) error {
	if a == nil {
		return ErrInvalid
	}

	if a.ID != "" {
		if err := ValidateID(a.ID); err != nil {
			return err
		}
	}

	if err := ValidateTitle(a.Title); err != nil {
		return err
	}

	if len(a.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalid, maxDescriptionLen)
	}

	if a.Visibility != "" {
		if _, ok := validVisibilities[a.Visibility]; !ok {
			return fmt.Errorf("%w: invalid visibility %q", ErrInvalid, a.Visibility)
		}
	}

	if a.Category != "" {
		if _, ok := validCategories[a.Category]; !ok {
			return fmt.Errorf("%w: invalid category %q", ErrInvalid, a.Category)
		}
	}

	if len(a.Tags) > maxTags {
		return fmt.Errorf("%w: exceeds maximum of %d tags", ErrInvalid, maxTags)
	}
	for _, tag := range a.Tags {
		if tag == "" || len(tag) > maxTagLength {
			return fmt.Errorf("%w: invalid tag %q", ErrInvalid, tag)
		}
	}

	if len(a.Steps) == 0 {
		return ErrNoSteps
	}
	if len(a.Steps) > maxSteps {
		return fmt.Errorf("%w: exceeds maximum of %d steps", ErrInvalidStep, maxSteps)
	}

	for i, step := range a.Steps {
		if err := ValidateStep(step); err != nil {
			return fmt.Errorf("step[%d]: %w", i, err)
		}
	}

	return nil
}

// ValidateTitle checks if an automation title is valid.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidTitle)
	}
	if len(title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidTitle, maxTitleLength)
	}
	return nil
}

// ValidateStep checks if a step is valid: known kind, bounded config,
// and kind-specific constraints where they matter for safety.
func ValidateStep(step Step) error {
	if _, ok := validKinds[step.Kind]; !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidStep, step.Kind)
	}
	if len(step.Config) > maxConfigKeys {
		return fmt.Errorf("%w: config exceeds %d keys", ErrInvalidStep, maxConfigKeys)
	}

	if step.Kind == KindDelay {
		ms, ok := configInt(step.Config, "duration_ms")
		if !ok {
			return fmt.Errorf("%w: delay requires duration_ms", ErrInvalidStep)
		}
		if ms < 0 || ms > maxDelayMS {
			return fmt.Errorf("%w: duration_ms must be 0-%d", ErrInvalidStep, maxDelayMS)
		}
	}

	return nil
}

// configInt reads an integer config value, tolerating the float64 that
// JSON decoding produces.
func configInt(config map[string]any, key string) (int, bool) {
	v, ok := config[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// ConfigString reads a string config value, returning "" when absent.
func ConfigString(config map[string]any, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

// ConfigDuration reads a duration_ms config value as a time.Duration.
func ConfigDuration(config map[string]any, key string) (time.Duration, bool) {
	ms, ok := configInt(config, key)
	if !ok {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// GenerateID creates a new canonical UUID for an automation or execution.
func GenerateID() string {
	return uuid.New().String()
}
