package model

// ValidationResult is the outcome of validating one event draft.
// Errors block acceptance; warnings and suggestions never do.
type ValidationResult struct {
	IsValid     bool     `json:"isValid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// NewValidationResult returns an empty, valid result with non-nil lists.
func NewValidationResult() ValidationResult {
	return ValidationResult{
		IsValid:     true,
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}
}
