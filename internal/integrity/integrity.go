// Package integrity provides tamper-evident hashing for persisted verdicts.
// All functions are pure and deterministic.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/manthanabc/EDAI-5/internal/model"
)

const hashV1Prefix = "v1:"

// hashedVerdict lists the fields covered by the content hash. The ID and
// hash fields themselves are excluded.
type hashedVerdict struct {
	CaseID          string   `json:"case_id"`
	Content         string   `json:"content"`
	Reasoning       string   `json:"reasoning"`
	Citations       []string `json:"citations"`
	Confidence      float64  `json:"confidence"`
	PassedBiasCheck bool     `json:"passed_bias_check"`
	BiasReasoning   string   `json:"bias_reasoning"`
	JudgeModel      string   `json:"judge_model"`
	CoJudgeModel    string   `json:"co_judge_model"`
	IsHuman         bool     `json:"is_human"`
	CreatedAt       string   `json:"created_at"`
}

// VerdictHash returns "v1:" followed by the SHA-256 hex digest of the RFC 8785
// canonical JSON of the verdict's content fields.
func VerdictHash(v model.Verdict) (string, error) {
	citations := v.Citations
	if citations == nil {
		citations = []string{}
	}
	raw, err := json.Marshal(hashedVerdict{
		CaseID:          v.CaseID.String(),
		Content:         v.Content,
		Reasoning:       v.Reasoning,
		Citations:       citations,
		Confidence:      v.Confidence,
		PassedBiasCheck: v.PassedBiasCheck,
		BiasReasoning:   v.BiasReasoning,
		JudgeModel:      v.JudgeModel,
		CoJudgeModel:    v.CoJudgeModel,
		IsHuman:         v.IsHuman,
		CreatedAt:       v.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("integrity: marshal verdict: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("integrity: canonicalize verdict: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hashV1Prefix + hex.EncodeToString(sum[:]), nil
}

// VerifyVerdictHash reports whether v.ContentHash matches the recomputed hash.
func VerifyVerdictHash(v model.Verdict) bool {
	if !strings.HasPrefix(v.ContentHash, hashV1Prefix) {
		return false
	}
	h, err := VerdictHash(v)
	return err == nil && h == v.ContentHash
}

// hashPair produces SHA-256(0x01 || a || b) as a hex string.
// The 0x01 prefix separates internal nodes from leaves (RFC 6962).
func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write([]byte(a))
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}

// BuildMerkleRoot constructs a Merkle tree over leaf hashes in the given
// order and returns the root. Empty input yields "", one leaf is its own root,
// and an odd node at any level is paired with itself.
func BuildMerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	level := append([]string(nil), leaves...)
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}

// VerdictChainRoot returns the Merkle root over a case's verdict hashes in
// creation order (oldest first).
func VerdictChainRoot(verdicts []model.Verdict) string {
	leaves := make([]string, len(verdicts))
	for i, v := range verdicts {
		leaves[len(verdicts)-1-i] = v.ContentHash
	}
	return BuildMerkleRoot(leaves)
}
