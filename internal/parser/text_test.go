package parser

import (
	"strings"
	"testing"
)

func TestTextParser_ParagraphSplitting(t *testing.T) {
	input := "The coating is 40 nm\nthick.\n\nIt is cured at 120 C.\n\n\n\nThe substrate is glass."
	tree, err := (&TextParser{}).Parse(strings.NewReader(input), "docs/US1234567.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "US1234567" {
		t.Errorf("expected title %q, got %q", "US1234567", tree.Title)
	}

	want := []string{
		"The coating is 40 nm\nthick.",
		"It is cured at 120 C.",
		"The substrate is glass.",
	}
	if len(tree.Children) != len(want) {
		t.Fatalf("expected %d children, got %d", len(want), len(tree.Children))
	}
	for i, w := range want {
		if tree.Children[i].Text != w {
			t.Errorf("child[%d]: expected %q, got %q", i, w, tree.Children[i].Text)
		}
	}
}

func TestTextParser_EmptyAndBlankInput(t *testing.T) {
	for _, input := range []string{"", "   \n\t\n"} {
		tree, err := (&TextParser{}).Parse(strings.NewReader(input), "empty.txt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tree.Children) != 0 {
			t.Errorf("input %q: expected 0 children, got %d", input, len(tree.Children))
		}
	}
}
