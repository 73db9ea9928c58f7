package manifest

import (
	"strings"
	"testing"
)

func TestValidateAcceptsWellFormedManifest(t *testing.T) {
	res, err := Validate([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Fatalf("Valid = false, issues: %+v", res.Issues)
	}
}

func TestValidateRejectsBadName(t *testing.T) {
	res, err := Validate([]byte(`
extensions:
  - name: "bad name!"
    source: https://example.com/x
`))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid {
		t.Fatal("Valid = true for name with spaces")
	}

	found := false
	for _, issue := range res.Issues {
		if strings.Contains(issue.Path, "/extensions/0/name") {
			found = true
		}
	}
	if !found {
		t.Errorf("no issue at /extensions/0/name, got %+v", res.Issues)
	}
}

func TestValidateRejectsBadEvent(t *testing.T) {
	res, err := Validate([]byte(`
extensions:
  - name: x
    source: https://example.com/x
    event: "sometimes"
`))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid {
		t.Fatal("Valid = true for malformed event")
	}
}

func TestValidateRejectsUnknownField(t *testing.T) {
	res, err := Validate([]byte(`
extensions:
  - name: x
    source: https://example.com/x
    lazy: true
`))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid {
		t.Fatal("Valid = true for unknown field")
	}
}
