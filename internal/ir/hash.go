package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix allows the
// digest algorithm to change without colliding with stored digests.
const (
	DomainTags    = "plcscan/tags/v1"
	DomainProject = "plcscan/project/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TagsDigest returns a stable digest of tag identities, values and force
// flags. Two tag tables with equal content produce equal digests
// regardless of slice order.
func TagsDigest(tags []Tag) (string, error) {
	obj := make(map[string]any, len(tags))
	for _, t := range tags {
		obj[t.ID] = map[string]any{
			"value":  t.Value,
			"forced": t.Forced,
		}
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("TagsDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTags, canonical), nil
}

// ProjectDigest returns a digest of the project's JSON encoding.
// It identifies the topology a recorded run was started from.
func ProjectDigest(p Project) (string, error) {
	data, err := jsonMarshalNoEscape(p)
	if err != nil {
		return "", fmt.Errorf("ProjectDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProject, data), nil
}
