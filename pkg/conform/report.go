package conform

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
)

const (
	ReportFile = "report.json"
	DigestFile = "report.sha256"
)

var ErrDigestMismatch = errors.New("conform: report digest mismatch")

// ConformanceReport is the result of an analysis run.
type ConformanceReport struct {
	RunID             string                `json:"run_id"`
	LogName           string                `json:"log_name,omitempty"`
	Timestamp         time.Time             `json:"timestamp"`
	Pass              bool                  `json:"pass"`
	ReasonCodes       []string              `json:"reason_codes,omitempty"`
	Constraints       []string              `json:"constraints"`
	Rejected          []Rejection           `json:"rejected,omitempty"`
	Contradiction     *ContradictionSummary `json:"contradiction,omitempty"`
	Summary           Summary               `json:"summary"`
	Variants          []VariantResult       `json:"variants"`
	ConstraintResults []ConstraintResult    `json:"constraint_results"`
	DurationMs        int64                 `json:"duration_ms"`
	// Digest is the SHA-256 of the RFC 8785 canonical JSON of the report
	// with Digest left empty.
	Digest string `json:"digest,omitempty"`
}

// Summary holds log-level counters and rates. Counters count occurrences.
type Summary struct {
	Traces          int     `json:"traces"`
	Variants        int     `json:"variants"`
	Conformant      int     `json:"conformant"`
	NonConformant   int     `json:"non_conformant"`
	ConformanceRate float64 `json:"conformance_rate"`
	FitnessRate     float64 `json:"fitness_rate"`
}

// ContradictionSummary mirrors explainer.ContradictionResult.
type ContradictionSummary struct {
	Contradictory bool     `json:"contradictory"`
	Proven        bool     `json:"proven"`
	Stable        bool     `json:"stable"`
	Bounded       bool     `json:"bounded"`
	Bound         int      `json:"bound"`
	Witness       []string `json:"witness,omitempty"`
}

// VariantResult is the classification of one variant.
type VariantResult struct {
	Labels              []string              `json:"labels"`
	Count               int                   `json:"count"`
	Conformant          bool                  `json:"conformant"`
	Fitness             float64               `json:"fitness"`
	Violated            []string              `json:"violated,omitempty"`
	ReasonCodes         []string              `json:"reason_codes,omitempty"`
	ConformanceLoss     float64               `json:"conformance_loss"`
	FitnessContribution float64               `json:"fitness_contribution"`
	Explanation         []ExplanationResult   `json:"explanation,omitempty"`
	Counterfactual      *CounterfactualResult `json:"counterfactual,omitempty"`
}

// ExplanationResult is one explaining constraint and its window.
type ExplanationResult struct {
	Index      int      `json:"index"`
	Constraint string   `json:"constraint"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Window     []string `json:"window"`
}

// CounterfactualResult is the nearest conformant trace.
type CounterfactualResult struct {
	Found      bool     `json:"found"`
	Bounded    bool     `json:"bounded,omitempty"`
	Labels     []string `json:"labels"`
	Distance   int      `json:"distance"`
	Similarity float64  `json:"similarity"`
}

// ConstraintResult aggregates one constraint over the log.
type ConstraintResult struct {
	Index                   int     `json:"index"`
	Constraint              string  `json:"constraint"`
	Activations             int     `json:"activations"`
	Violations              int     `json:"violations"`
	ConformanceContribution float64 `json:"conformance_contribution"`
	FitnessContribution     float64 `json:"fitness_contribution"`
}

// ComputeDigest returns the hex SHA-256 of the canonical JSON of r without
// its digest.
func (r *ConformanceReport) ComputeDigest() (string, error) {
	c := *r
	c.Digest = ""
	data, err := json.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("conform: marshal report: %w", err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("conform: canonicalize report: %w", err)
	}
	return sha256Hash(canonical), nil
}

// WriteReport writes report.json and report.sha256 into dir.
func WriteReport(dir string, r *ConformanceReport) error {
	if r.Digest == "" {
		d, err := r.ComputeDigest()
		if err != nil {
			return err
		}
		r.Digest = d
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ReportFile), data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", ReportFile, err)
	}

	line := r.Digest + "  " + ReportFile + "\n"
	if err := os.WriteFile(filepath.Join(dir, DigestFile), []byte(line), 0600); err != nil {
		return fmt.Errorf("write %s: %w", DigestFile, err)
	}
	return nil
}

// ReadReport reads a report written by WriteReport and verifies its digest
// against both the recomputed value and the digest file.
func ReadReport(dir string) (*ConformanceReport, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ReportFile, err)
	}
	var r ConformanceReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ReportFile, err)
	}

	sum, err := os.ReadFile(filepath.Join(dir, DigestFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", DigestFile, err)
	}
	fields := strings.Fields(string(sum))
	if len(fields) == 0 || fields[0] != r.Digest {
		return nil, fmt.Errorf("%w: %s does not match report", ErrDigestMismatch, DigestFile)
	}

	want, err := r.ComputeDigest()
	if err != nil {
		return nil, err
	}
	if want != r.Digest {
		return nil, fmt.Errorf("%w: recorded %s, computed %s", ErrDigestMismatch, r.Digest, want)
	}
	return &r, nil
}

func sha256Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
