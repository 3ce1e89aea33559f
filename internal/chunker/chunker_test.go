package chunker

import (
	"strings"
	"testing"
)

func TestNew_UnknownPolicy(t *testing.T) {
	if _, err := New("semantic-window", Params{}); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestNew_InvalidWindow(t *testing.T) {
	cases := []struct {
		policy Policy
		params Params
	}{
		{PolicySentenceWindow, Params{ChunkSize: 3, Overlap: 3}},
		{PolicySentenceWindow, Params{ChunkSize: 2, Overlap: 5}},
		{PolicyTokenWindow, Params{MaxTokens: 10, OverlapTokens: 10}},
	}
	for _, tc := range cases {
		if _, err := New(tc.policy, tc.params); err == nil {
			t.Errorf("%s overlap>=size: expected error", tc.policy)
		}
	}
}

func TestSentenceWindow(t *testing.T) {
	c, err := New(PolicySentenceWindow, Params{ChunkSize: 2, Overlap: 1})
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Split("One. Two! Three? Four.")
	want := []string{"One. Two!", "Two! Three?", "Three? Four.", "Four."}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %v, want %d", len(chunks), chunks, len(want))
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestSentenceWindow_BlankInput(t *testing.T) {
	c, _ := New(PolicySentenceWindow, Params{ChunkSize: 3, Overlap: 1})
	if chunks := c.Split("   \n\t "); len(chunks) != 0 {
		t.Errorf("blank input produced %v", chunks)
	}
}

func TestSentenceWindow_NoTrailingTerminator(t *testing.T) {
	c, _ := New(PolicySentenceWindow, Params{ChunkSize: 5, Overlap: 0})
	chunks := c.Split("First sentence. Second without terminator")
	if len(chunks) != 1 {
		t.Fatalf("got %v", chunks)
	}
	if !strings.Contains(chunks[0], "Second without terminator") {
		t.Errorf("trailing sentence lost: %q", chunks[0])
	}
}

func TestTokenWindow_ZeroOverlapRoundTrip(t *testing.T) {
	// With overlap 0, concatenating all chunks must reconstruct the token
	// sequence with no gaps and no duplicates.
	c, err := New(PolicyTokenWindow, Params{MaxTokens: 4, OverlapTokens: 0})
	if err != nil {
		t.Fatal(err)
	}
	text := "a b c d e f g h i j"
	chunks := c.Split(text)
	var rejoined []string
	for _, ch := range chunks {
		rejoined = append(rejoined, strings.Fields(ch)...)
	}
	if got := strings.Join(rejoined, " "); got != text {
		t.Errorf("round trip = %q, want %q", got, text)
	}
}

func TestTokenWindow_Overlap(t *testing.T) {
	c, _ := New(PolicyTokenWindow, Params{MaxTokens: 3, OverlapTokens: 1})
	chunks := c.Split("w1 w2 w3 w4 w5")
	// The window keeps advancing by step until the start passes the end, so a
	// trailing partial window is produced.
	want := []string{"w1 w2 w3", "w3 w4 w5", "w5"}
	if len(chunks) != len(want) {
		t.Fatalf("got %v, want %v", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestParagraphAccumulation(t *testing.T) {
	c, err := New(PolicyParagraphAccumulation, Params{MinLength: 20})
	if err != nil {
		t.Fatal(err)
	}
	text := "short one\n\nsecond paragraph here\n\ntail"
	chunks := c.Split(text)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks %v", len(chunks), chunks)
	}
	// First two paragraphs accumulate past 20 chars and flush together.
	if !strings.Contains(chunks[0], "short one") || !strings.Contains(chunks[0], "second paragraph here") {
		t.Errorf("first chunk = %q", chunks[0])
	}
	// Remainder is flushed even though it is under the threshold.
	if chunks[1] != "tail" {
		t.Errorf("remainder = %q", chunks[1])
	}
}

func TestParagraphAccumulation_SkipsBlankParagraphs(t *testing.T) {
	c, _ := New(PolicyParagraphAccumulation, Params{MinLength: 5})
	chunks := c.Split("\n\n  \n\nalpha\n\n\n\nbeta")
	for _, ch := range chunks {
		if strings.TrimSpace(ch) == "" {
			t.Errorf("empty chunk produced: %q", ch)
		}
	}
}

func TestSplit_NeverEmptyChunks(t *testing.T) {
	policies := []struct {
		policy Policy
		params Params
	}{
		{PolicySentenceWindow, Params{ChunkSize: 2, Overlap: 0}},
		{PolicyTokenWindow, Params{MaxTokens: 5, OverlapTokens: 2}},
		{PolicyParagraphAccumulation, Params{MinLength: 10}},
	}
	text := "Alpha beta gamma. Delta epsilon!\n\nZeta eta theta? Iota kappa."
	for _, tc := range policies {
		c, err := New(tc.policy, tc.params)
		if err != nil {
			t.Fatal(err)
		}
		for i, ch := range c.Split(text) {
			if ch == "" {
				t.Errorf("%s: chunk %d is empty", tc.policy, i)
			}
		}
	}
}
