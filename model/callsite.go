package model

import (
	"fmt"

	"github.com/minio/highwayhash"
)

// TopicUnknown is the single sentinel used when a topic name cannot be
// resolved statically (e.g. passed via a variable). The scanner never emits
// an empty topic.
const TopicUnknown = "<unknown>"

// Role distinguishes producer from consumer call sites.
type Role string

const (
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

// CallSite represents one producer or consumer invocation located in source.
// Records are immutable once emitted by the scanner.
type CallSite struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Ecosystem Ecosystem `json:"ecosystem"`
	Path      string    `json:"path"`
	Line      int       `json:"line"`
	ScopeRoot string    `json:"scopeRoot"`
	App       string    `json:"app,omitempty"` // project name of the owning scope, when determinable

	// Topic is the literal topic name, or TopicUnknown when the value is
	// computed dynamically.
	Topic string `json:"topic"`

	// Serializer is the detected serializer identifier, empty when none was
	// found. CustomSerializer marks serializers that bypass the schema
	// registry (hand-rolled JSON/Avro encoding, lambdas, Serializer impls).
	Serializer       string `json:"serializer,omitempty"`
	CustomSerializer bool   `json:"customSerializer,omitempty"`

	SchemaRegistryURL string `json:"schemaRegistryURL,omitempty"`
	AutoRegister      bool   `json:"autoRegister,omitempty"`
	UseLatestVersion  bool   `json:"useLatestVersion,omitempty"`

	// TypeRef names the value type associated with the call site, when one
	// could be read off the invocation. Empty when unresolved.
	TypeRef string `json:"typeRef,omitempty"`
}

var fingerprintKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Fingerprint derives a stable call-site identifier from its location and role.
func Fingerprint(role Role, path string, line int) string {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return fmt.Sprintf("%s:%s:%d", role, path, line)
	}
	_, _ = fmt.Fprintf(h, "%s:%s:%d", role, path, line)
	return fmt.Sprintf("%016x", h.Sum64())
}

// FlagKind identifies the whole-tree boolean flag scans.
type FlagKind string

const (
	FlagAutoRegister     FlagKind = "auto.register.schemas"
	FlagUseLatestVersion FlagKind = "use.latest.version"
)

// FlagOccurrence records one occurrence of a registry-behaviour flag set to
// true anywhere in the scanned tree, with its nearest call-site association
// when one could be determined by directory proximity.
type FlagOccurrence struct {
	Kind       FlagKind `json:"kind"`
	Path       string   `json:"path"`
	Line       int      `json:"line"`
	CallSiteID string   `json:"callSiteID,omitempty"` // empty when no call site could be associated
}
