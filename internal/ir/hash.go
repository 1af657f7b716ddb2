package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPipeline = "pipeql/pipeline/v1"
	DomainSchema   = "pipeql/schema/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PipelineID computes the content-addressed ID of a pipeline from its
// canonical encoding. Pipelines that differ only in Map field order get
// different IDs, since field order is emission order.
func PipelineID(p Pipeline) (string, error) {
	canonical, err := MarshalPipeline(p)
	if err != nil {
		return "", fmt.Errorf("PipelineID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPipeline, canonical), nil
}

// SchemaID computes the content-addressed ID of a schema.
func SchemaID(s Schema) (string, error) {
	canonical, err := MarshalSchema(s)
	if err != nil {
		return "", fmt.Errorf("SchemaID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}

// MustPipelineID is like PipelineID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPipelineID(p Pipeline) string {
	id, err := PipelineID(p)
	if err != nil {
		panic(err)
	}
	return id
}
