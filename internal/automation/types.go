package automation

import "time"

// AutomationSummary is the stored representation of an automation: an
// ordered list of steps plus the metadata needed to present it for
// confirmation. It is the record the resolver produces and both executors
// consume.
type AutomationSummary struct {
	// Identity. ID is a canonical UUID string; resolution refuses
	// anything that fails the UUID grammar.
	ID    string `json:"id"`
	Title string `json:"title"`

	// Description (optional)
	Description string `json:"description,omitempty"`

	// Ordered steps. Immutable once embedded in a link payload.
	Steps []Step `json:"steps"`

	// Sharing scope
	Visibility Visibility `json:"visibility"`

	// UI metadata
	Category Category `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	// Owner is the account that created the automation.
	Owner string `json:"owner"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Step is a single action within an automation, tagged by kind with
// kind-specific configuration. A disabled step is kept in the record but
// never executed or embedded.
type Step struct {
	Kind    StepKind       `json:"kind"`
	Config  map[string]any `json:"config,omitempty"`
	Enabled bool           `json:"enabled"`
}

// StepKind identifies the action a step performs. The catalog is closed:
// a kind outside this list fails validation rather than passing through
// as an opaque string.
type StepKind string

const (
	KindNotification StepKind = "notification"
	KindSMS          StepKind = "sms"
	KindCall         StepKind = "call"
	KindEmail        StepKind = "email"
	KindOpenURL      StepKind = "open_url"
	KindDelay        StepKind = "delay"
	KindText         StepKind = "text"
	KindLocation     StepKind = "location"
	KindWifi         StepKind = "wifi"
	KindBluetooth    StepKind = "bluetooth"
	KindBrightness   StepKind = "brightness"
	KindVolume       StepKind = "volume"
	KindAppLaunch    StepKind = "app_launch"
)

// AllStepKinds returns the full step catalog.
func AllStepKinds() []StepKind {
	return []StepKind{
		KindNotification,
		KindSMS,
		KindCall,
		KindEmail,
		KindOpenURL,
		KindDelay,
		KindText,
		KindLocation,
		KindWifi,
		KindBluetooth,
		KindBrightness,
		KindVolume,
		KindAppLaunch,
	}
}

// FallbackCompatible reports whether the kind can run with no native
// automation bridge. The set is a strict subset of the catalog: only
// user-visible, user-confirmable intents qualify — nothing that touches
// device configuration or background scheduling.
func (k StepKind) FallbackCompatible() bool {
	switch k {
	case KindNotification, KindSMS, KindCall, KindEmail,
		KindOpenURL, KindDelay, KindText, KindLocation:
		return true
	default:
		return false
	}
}

// Visibility controls who can resolve a shared automation.
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPublic   Visibility = "public"
)

// AllVisibilities returns all valid visibility values.
func AllVisibilities() []Visibility {
	return []Visibility{VisibilityPrivate, VisibilityUnlisted, VisibilityPublic}
}

// Category groups automations for UI organisation.
type Category string

const (
	CategoryDaily         Category = "daily"
	CategoryCommunication Category = "communication"
	CategoryConnectivity  Category = "connectivity"
	CategoryProductivity  Category = "productivity"
	CategorySecurity      Category = "security"
	CategoryEmergency     Category = "emergency"
)

// AllCategories returns all valid automation categories.
func AllCategories() []Category {
	return []Category{
		CategoryDaily,
		CategoryCommunication,
		CategoryConnectivity,
		CategoryProductivity,
		CategorySecurity,
		CategoryEmergency,
	}
}

// DeepCopy creates a complete independent copy of the AutomationSummary.
// All map and slice fields are cloned so modifications to the copy do not
// affect the original. Essential for cache isolation.
func (a *AutomationSummary) DeepCopy() *AutomationSummary {
	if a == nil {
		return nil
	}

	cpy := *a // Shallow copy of value fields

	if a.Steps != nil {
		cpy.Steps = make([]Step, len(a.Steps))
		for i, step := range a.Steps {
			cpy.Steps[i] = step
			if step.Config != nil {
				cpy.Steps[i].Config = deepCopyMap(step.Config)
			}
		}
	}

	if a.Tags != nil {
		cpy.Tags = make([]string, len(a.Tags))
		copy(cpy.Tags, a.Tags)
	}

	return &cpy
}

// EnabledSteps returns the automation's enabled steps in declared order.
func (a *AutomationSummary) EnabledSteps() []Step {
	steps := make([]Step, 0, len(a.Steps))
	for _, s := range a.Steps {
		if s.Enabled {
			steps = append(steps, s)
		}
	}
	return steps
}

// DeepCopy creates an independent copy of the step, cloning its config.
func (s Step) DeepCopy() Step {
	cpy := s
	cpy.Config = deepCopyMap(s.Config)
	return cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v // Primitives are immutable
	}
}
