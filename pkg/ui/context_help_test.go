package ui

import (
	"strings"
	"testing"
)

func TestContextHelpFallsBackToTree(t *testing.T) {
	if contextHelp(helpContext(42)) != contextHelpTree {
		t.Error("unknown context should show the tree help")
	}
	if !strings.Contains(contextHelp(helpDetail), "Detail View") {
		t.Error("detail help missing")
	}
}

func TestContextHelpModalNarrow(t *testing.T) {
	out := renderContextHelp(helpSplit, newTestTheme(), 30)
	if !strings.Contains(out, "Quick Reference") {
		t.Errorf("modal missing title:\n%s", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if w := len([]rune(line)); w > 30 {
			t.Errorf("line wider than 30 cells (%d): %q", w, line)
		}
	}
}
