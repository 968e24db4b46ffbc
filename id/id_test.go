package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/conveyor/id"
)

func TestNewGeneratesPrefixedIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		gen    func() id.ID
		prefix string
	}{
		{"job", id.NewJobID, "job"},
		{"cron", id.NewCronID, "cron"},
		{"dlq", id.NewDLQID, "dlq"},
		{"event", id.NewEventID, "evt"},
		{"worker", id.NewWorkerID, "wkr"},
		{"lease", id.NewLeaseToken, "lease"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.gen()
			if got.IsNil() {
				t.Fatal("generated ID is nil")
			}
			if !strings.HasPrefix(got.String(), tt.prefix+"_") {
				t.Fatalf("ID %q missing prefix %q", got.String(), tt.prefix)
			}
			if got.Prefix() != id.Prefix(tt.prefix) {
				t.Fatalf("Prefix() = %q, want %q", got.Prefix(), tt.prefix)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	orig := id.NewJobID()
	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Fatalf("round trip: got %q, want %q", parsed.String(), orig.String())
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "not-a-typeid", "job_!!!"} {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", s)
		}
	}
}

func TestParseWithPrefixEnforcesPrefix(t *testing.T) {
	t.Parallel()

	jobID := id.NewJobID()

	if _, err := id.ParseJobID(jobID.String()); err != nil {
		t.Fatalf("ParseJobID rejected valid job ID: %v", err)
	}
	if _, err := id.ParseDLQID(jobID.String()); err == nil {
		t.Fatal("ParseDLQID accepted a job ID")
	}
}

func TestLeaseTokensAreUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		tok := id.NewLeaseToken()
		s := tok.String()
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate lease token %q", s)
		}
		seen[s] = struct{}{}
	}
}

func TestTextMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	orig := id.NewWorkerID()
	data, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var back id.ID
	if err := back.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if back.String() != orig.String() {
		t.Fatalf("round trip: got %q, want %q", back.String(), orig.String())
	}

	// Nil handling.
	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil): %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("MarshalText(nil) = %q, want empty", data)
	}
}

func TestScanSources(t *testing.T) {
	t.Parallel()

	orig := id.NewJobID()

	tests := []struct {
		name    string
		src     any
		wantNil bool
		wantErr bool
	}{
		{"string", orig.String(), false, false},
		{"bytes", []byte(orig.String()), false, false},
		{"nil", nil, true, false},
		{"empty string", "", true, false},
		{"unsupported type", 42, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got id.ID
			err := got.Scan(tt.src)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Scan succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if got.IsNil() != tt.wantNil {
				t.Fatalf("IsNil() = %v, want %v", got.IsNil(), tt.wantNil)
			}
		})
	}
}
