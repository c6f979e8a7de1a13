package ingest

import (
	"strings"
	"testing"
)

func TestSplitTextEmpty(t *testing.T) {
	t.Parallel()

	if got := SplitText("", 100, 20); got != nil {
		t.Errorf("SplitText(empty) = %v, want nil", got)
	}
	if got := SplitText("   \n\t  ", 100, 20); got != nil {
		t.Errorf("SplitText(whitespace) = %v, want nil", got)
	}
}

func TestSplitTextShortInput(t *testing.T) {
	t.Parallel()

	got := SplitText("short text", 100, 20)
	if len(got) != 1 || got[0] != "short text" {
		t.Errorf("SplitText(short) = %v, want single chunk", got)
	}
}

func TestSplitTextChunkSizeAndOverlap(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", 250)
	chunks := SplitText(text, 100, 20)

	// Step is 80, so chunks start at 0, 80, 160, 240.
	if len(chunks) != 4 {
		t.Fatalf("SplitText() produced %d chunks, want 4", len(chunks))
	}
	for i, c := range chunks[:3] {
		if len([]rune(c)) != 100 {
			t.Errorf("chunk %d length = %d runes, want 100", i, len([]rune(c)))
		}
	}
	if len([]rune(chunks[3])) != 10 {
		t.Errorf("last chunk length = %d runes, want 10", len([]rune(chunks[3])))
	}
}

func TestSplitTextOverlapContent(t *testing.T) {
	t.Parallel()

	text := "0123456789"
	chunks := SplitText(text, 6, 2)

	// Step 4: chunks at 0..6, 4..10.
	if len(chunks) != 2 {
		t.Fatalf("SplitText() produced %d chunks, want 2", len(chunks))
	}
	if chunks[0] != "012345" || chunks[1] != "456789" {
		t.Errorf("SplitText() = %v, want overlapping windows", chunks)
	}
}

func TestSplitTextMultibyteSafe(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("héllo wörld ", 50)
	for _, chunk := range SplitText(text, 30, 5) {
		if !strings.HasPrefix(text, chunk[:0]) {
			t.Fatal("unreachable")
		}
		for _, r := range chunk {
			if r == '�' {
				t.Fatalf("chunk contains replacement rune, multi-byte character was split: %q", chunk)
			}
		}
	}
}

func TestSplitTextDefaults(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 2500)
	chunks := SplitText(text, 0, -1)

	// Defaults: size 1000, overlap 200, step 800 → starts at 0, 800, 1600, 2400.
	if len(chunks) != 4 {
		t.Errorf("SplitText() with defaults produced %d chunks, want 4", len(chunks))
	}
}
