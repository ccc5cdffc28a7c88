package model

import "fmt"

// WarningKind enumerates the recoverable failure taxonomy. None of these
// abort a scan; they are collected and attached to the final report.
type WarningKind string

const (
	WarnFileUnreadable        WarningKind = "file-unreadable"
	WarnFileTooLarge          WarningKind = "file-too-large"
	WarnEcosystemUndetermined WarningKind = "ecosystem-undetermined"
	WarnTypeUnresolvable      WarningKind = "type-unresolvable"
	WarnAmbiguousTopic        WarningKind = "ambiguous-topic"
	WarnUnknownFieldType      WarningKind = "unknown-field-type"
	WarnValidatorUnavailable  WarningKind = "validator-unavailable"
	WarnSchemaLint            WarningKind = "schema-lint"
)

// Warning is a non-fatal scan diagnostic.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Path   string      `json:"path,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

func (w Warning) String() string {
	if w.Path == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Path, w.Detail)
}
