package entities

// FieldSpec declares where a form control may be found, as an ordered set of
// strategies. New locales or markup variants are additive: extend the lists.
type FieldSpec struct {
	Name        string   `json:"name"`
	Label       string   `json:"label,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Selectors   []string `json:"selectors,omitempty"`
	Critical    bool     `json:"critical"`
}

// MaxOptionalFillFailures is the budget of optional fields allowed to fail
// before the whole fill step is considered broken.
const MaxOptionalFillFailures = 2
