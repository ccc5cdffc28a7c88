package model

// Category is the five-way producer risk classification.
//
//	A — schema-registry integrated with a managed Confluent serializer
//	B — no schema-registry integration detected
//	C — producer auto-registers schemas
//	D — schema could not be inferred
//	E — custom serializer bypassing the registry
type Category string

const (
	CategoryA Category = "A"
	CategoryB Category = "B"
	CategoryC Category = "C"
	CategoryD Category = "D"
	CategoryE Category = "E"
)

// Condition records one classifier guard evaluation. Every guard checked is
// recorded, not only the one that matched, so results are auditable.
type Condition struct {
	Name    string `json:"name"`
	Held    bool   `json:"held"`
	Matched bool   `json:"matched,omitempty"` // true for the guard that decided the category
}

// ClassificationResult is the classifier verdict for one producer call site.
type ClassificationResult struct {
	CallSiteID string      `json:"callSiteID"`
	Topic      string      `json:"topic"`
	App        string      `json:"app,omitempty"`
	Category   Category    `json:"category"`
	Rationale  []Condition `json:"rationale"`
}
