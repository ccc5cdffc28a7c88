// Package registry defines the narrow contract to an external
// schema-validation collaborator. The core must function with the
// collaborator absent: the Unavailable implementation degrades every call to
// an "unvalidated" outcome instead of erroring.
package registry

import (
	"context"

	"github.com/streamlens/streamlens/model"
)

// Verdict is a compatibility check outcome.
type Verdict string

const (
	VerdictCompatible   Verdict = "compatible"
	VerdictIncompatible Verdict = "incompatible"
	VerdictUnvalidated  Verdict = "unvalidated"
)

// Validator is the external schema service contract. Implementations talk to
// a live registry; the core never does.
type Validator interface {
	// Infer derives a schema model from sample payload bytes.
	Infer(ctx context.Context, sample []byte) (*model.SchemaModel, error)

	// Lint reviews a schema model and returns human-readable warnings.
	Lint(ctx context.Context, schema *model.SchemaModel) ([]string, error)

	// Validate checks a schema model against the target subject for
	// compatibility.
	Validate(ctx context.Context, schema *model.SchemaModel, target string) (Verdict, error)
}

// Unavailable is the mandatory degraded mode used when no validator is
// configured. All operations succeed with unvalidated outcomes.
type Unavailable struct{}

// Infer reports no schema without error; callers fall back to local
// inference.
func (Unavailable) Infer(ctx context.Context, sample []byte) (*model.SchemaModel, error) {
	return nil, nil
}

// Lint returns no warnings.
func (Unavailable) Lint(ctx context.Context, schema *model.SchemaModel) ([]string, error) {
	return nil, nil
}

// Validate reports the unvalidated verdict.
func (Unavailable) Validate(ctx context.Context, schema *model.SchemaModel, target string) (Verdict, error) {
	return VerdictUnvalidated, nil
}
