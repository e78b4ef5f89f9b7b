package rules

import "testing"

func TestLookupCategoryNormalizesCode(t *testing.T) {
	c, ok := LookupCategory(" C4 ")
	if !ok {
		t.Fatalf("expected c4 to be known")
	}
	if c.Code != "c4" {
		t.Fatalf("unexpected code: %s", c.Code)
	}
}

func TestLookupCategoryUnknown(t *testing.T) {
	if _, ok := LookupCategory("c42"); ok {
		t.Fatalf("expected c42 to be unknown")
	}
}

func TestRuleCitationFallsBackToGeneric(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{code: "c1", want: "ПДР: п.15.10"},
		{code: "c2", want: "ПДР: п.8.7"},
		{code: "c4", want: "ПДР: п.15.9"},
		{code: "c5", want: GenericRuleCitation},
		{code: "missing", want: GenericRuleCitation},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := RuleCitation(tt.code); got != tt.want {
				t.Fatalf("unexpected citation for %s: got %q want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestCategoriesReturnsCopy(t *testing.T) {
	list := Categories()
	list[0].Label = "changed"
	if Categories()[0].Label == "changed" {
		t.Fatalf("category table must not be mutable through Categories()")
	}
}
