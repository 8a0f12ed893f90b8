package docstore

import (
	"strings"
	"testing"
)

func TestChecksumStable(t *testing.T) {
	text := []byte("HDFC Bank Statement\n2025-01-03 SWIGGY 450.50 DR")

	first := Checksum(text)
	second := Checksum(text)
	if first != second {
		t.Fatalf("checksum not stable: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	if changed := Checksum([]byte("HDFC Bank Statement\n2025-01-03 SWIGGY 450.51 DR")); changed == first {
		t.Fatal("checksum did not change with content")
	}
}

func TestObjectName(t *testing.T) {
	got := ObjectName("user-1", "doc-9")
	want := "statements/user-1/doc-9.txt"
	if got != want {
		t.Fatalf("ObjectName = %q, want %q", got, want)
	}
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "valid",
			uri:        "gs://spendmatch-statements/statements/u1/d1.txt",
			wantBucket: "spendmatch-statements",
			wantObject: "statements/u1/d1.txt",
		},
		{
			name:    "missing scheme",
			uri:     "spendmatch-statements/statements/u1/d1.txt",
			wantErr: true,
		},
		{
			name:    "bucket only",
			uri:     "gs://spendmatch-statements",
			wantErr: true,
		},
		{
			name:    "trailing slash only",
			uri:     "gs://spendmatch-statements/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := parseGCSURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.uri)
				}
				if !strings.Contains(err.Error(), "invalid GCS URI") {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Fatalf("got %q %q, want %q %q", bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}
