// Package idverify validates Indian identity numbers (Aadhaar, PAN).
//
// The format checks are real. MockVerifier stands in for a remote
// verification service behind the Verifier interface; its Aadhaar checksum
// is a placeholder (even digit sum), not the Verhoeff algorithm, and only
// MockVerifier applies it.
package idverify

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Result is the outcome of one verification.
type Result struct {
	Valid        bool              `json:"valid"`
	Normalized   map[string]string `json:"normalized,omitempty"`
	VerifiedName string            `json:"verified_name,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Verifier checks identity documents. A failed check is reported in
// Result; the error return is reserved for transport or context failures.
type Verifier interface {
	VerifyAadhaar(ctx context.Context, raw string) (Result, error)
	VerifyPAN(ctx context.Context, raw string) (Result, error)
}

var (
	aadhaarPlain   = regexp.MustCompile(`^[0-9]{12}$`)
	aadhaarGrouped = regexp.MustCompile(`^[0-9]{4} [0-9]{4} [0-9]{4}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
)

var panHolderTypes = map[byte]string{
	'P': "Individual",
	'F': "Firm",
	'A': "Association of Persons",
	'T': "Trust",
	'B': "Body of Individuals",
	'C': "Company",
	'G': "Government",
	'H': "Hindu Undivided Family",
	'L': "Local Authority",
	'J': "Artificial Juridical Person",
}

// NormalizeAadhaar strips the optional group separators.
func NormalizeAadhaar(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
}

// ValidAadhaarFormat accepts 12 digits, plain or grouped as "dddd dddd dddd".
func ValidAadhaarFormat(raw string) bool {
	s := strings.TrimSpace(raw)
	return aadhaarPlain.MatchString(s) || aadhaarGrouped.MatchString(s)
}

// mockChecksum is the placeholder rule MockVerifier applies: the digit sum
// of the normalized number must be even.
func mockChecksum(normalized string) bool {
	sum := 0
	for _, r := range normalized {
		sum += int(r - '0')
	}
	return sum%2 == 0
}

// ValidPANFormat checks AAAAA9999A with a known holder-type letter in
// position four. Input is not upper-cased first.
func ValidPANFormat(raw string) bool {
	if !panPattern.MatchString(raw) {
		return false
	}
	_, ok := panHolderTypes[raw[3]]
	return ok
}

// PANHolderType returns the holder category encoded in a PAN, or "" when
// the letter is unknown.
func PANHolderType(pan string) string {
	if len(pan) < 4 {
		return ""
	}
	return panHolderTypes[pan[3]]
}

// MockVerifier simulates a remote verification call: it waits Delay and
// returns Name as the verified holder for any well-formed document.
type MockVerifier struct {
	Delay time.Duration
	Name  string
}

// DefaultMockName is returned as the verified holder name.
const DefaultMockName = "VERIFIED HOLDER"

func NewMockVerifier(delay time.Duration) *MockVerifier {
	return &MockVerifier{Delay: delay, Name: DefaultMockName}
}

func (m *MockVerifier) VerifyAadhaar(ctx context.Context, raw string) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	if !ValidAadhaarFormat(raw) {
		return Result{Error: "invalid Aadhaar number"}, nil
	}
	n := NormalizeAadhaar(raw)
	if !mockChecksum(n) {
		return Result{Error: "Aadhaar checksum mismatch"}, nil
	}
	return Result{
		Valid:        true,
		Normalized:   map[string]string{"aadhaar": n, "masked": "XXXX XXXX " + n[8:]},
		VerifiedName: m.Name,
	}, nil
}

func (m *MockVerifier) VerifyPAN(ctx context.Context, raw string) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	pan := strings.TrimSpace(raw)
	if !ValidPANFormat(pan) {
		return Result{Error: "invalid PAN"}, nil
	}
	return Result{
		Valid:        true,
		Normalized:   map[string]string{"pan": pan, "holder_type": PANHolderType(pan)},
		VerifiedName: m.Name,
	}, nil
}

func (m *MockVerifier) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
