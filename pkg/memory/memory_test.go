package memory

import "testing"

func TestCloneIsIndependent(t *testing.T) {
	m := Memory{ID: "a", Metadata: Metadata{Tags: []string{"x"}, Extra: map[string]any{"k": 1}}}
	c := m.Clone()
	c.Metadata.Tags[0] = "y"
	c.Metadata.Extra["k"] = 2
	if m.Metadata.Tags[0] != "x" {
		t.Fatal("clone mutated original tags")
	}
	if m.Metadata.Extra["k"] != 1 {
		t.Fatal("clone mutated original extra map")
	}
}

func TestValidateContentLimit(t *testing.T) {
	ok := make([]byte, MaxContentLen)
	if err := ValidateContent(string(ok)); err != nil {
		t.Fatalf("expected ok at limit: %v", err)
	}
	tooLong := make([]byte, MaxContentLen+1)
	if err := ValidateContent(string(tooLong)); err == nil {
		t.Fatal("expected error over limit")
	}
}

func TestValidateTopKBounds(t *testing.T) {
	if err := ValidateTopK(0); err == nil {
		t.Fatal("expected error for 0")
	}
	if err := ValidateTopK(101); err == nil {
		t.Fatal("expected error for 101")
	}
	if err := ValidateTopK(50); err != nil {
		t.Fatal("expected ok for 50")
	}
}

func TestRelationKey(t *testing.T) {
	r := Relation{FromMemoryID: "a", ToMemoryID: "b", RelationType: "related"}
	if r.Key() != [3]string{"a", "b", "related"} {
		t.Fatal("unexpected key")
	}
}
