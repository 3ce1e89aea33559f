// Package chunker splits document text into overlapping fragments for embedding.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// Policy selects how a document's text is split into chunks.
type Policy string

const (
	// PolicySentenceWindow groups sentences into overlapping windows.
	PolicySentenceWindow Policy = "sentence-window"
	// PolicyTokenWindow groups whitespace tokens into overlapping windows.
	PolicyTokenWindow Policy = "token-window"
	// PolicyParagraphAccumulation accumulates paragraphs until a minimum length.
	PolicyParagraphAccumulation Policy = "paragraph-accumulation"
)

// ErrUnknownPolicy is returned for a policy name outside the supported set.
var ErrUnknownPolicy = errors.New("unknown chunk policy")

// ErrInvalidWindow is returned when overlap >= window size (non-positive step).
var ErrInvalidWindow = errors.New("overlap must be smaller than window size")

// Params holds the numeric parameters for all policies. Only the fields for
// the selected policy are consulted; zero values take the defaults below.
type Params struct {
	ChunkSize     int // sentence-window: sentences per chunk (default 3)
	Overlap       int // sentence-window: sentences shared between chunks (default 1)
	MaxTokens     int // token-window: tokens per chunk (default 512)
	OverlapTokens int // token-window: tokens shared between chunks (default 50)
	MinLength     int // paragraph-accumulation: flush threshold in chars (default 100)
}

// Chunker splits text under a fixed policy. Construct with New; validation
// happens there so a misconfigured chunker never reaches embedding.
type Chunker struct {
	policy    Policy
	size      int
	overlap   int
	minLength int
}

// New validates the policy and its parameters and returns a Chunker.
// Unknown policies fail with ErrUnknownPolicy; a window whose overlap is not
// smaller than its size fails with ErrInvalidWindow.
func New(policy Policy, p Params) (*Chunker, error) {
	c := &Chunker{policy: policy}
	switch policy {
	case PolicySentenceWindow:
		c.size = p.ChunkSize
		if c.size <= 0 {
			c.size = 3
		}
		c.overlap = p.Overlap
		if p.ChunkSize <= 0 && p.Overlap == 0 {
			c.overlap = 1
		}
		if c.overlap >= c.size {
			return nil, fmt.Errorf("%w: overlap %d, size %d", ErrInvalidWindow, c.overlap, c.size)
		}
	case PolicyTokenWindow:
		c.size = p.MaxTokens
		if c.size <= 0 {
			c.size = 512
		}
		c.overlap = p.OverlapTokens
		if p.MaxTokens <= 0 && p.OverlapTokens == 0 {
			c.overlap = 50
		}
		if c.overlap >= c.size {
			return nil, fmt.Errorf("%w: overlap %d, size %d", ErrInvalidWindow, c.overlap, c.size)
		}
	case PolicyParagraphAccumulation:
		c.minLength = p.MinLength
		if c.minLength <= 0 {
			c.minLength = 100
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	return c, nil
}

// Policy returns the chunker's policy name.
func (c *Chunker) Policy() Policy {
	return c.policy
}

// Split returns the ordered, non-empty chunks of text. Blank input yields nil.
func (c *Chunker) Split(text string) []string {
	switch c.policy {
	case PolicySentenceWindow:
		return window(splitSentences(text), c.size, c.overlap, " ")
	case PolicyTokenWindow:
		return window(strings.Fields(text), c.size, c.overlap, " ")
	case PolicyParagraphAccumulation:
		return accumulateParagraphs(text, c.minLength)
	}
	return nil
}

// window slides a size-wide window over units, advancing size-overlap each
// step, and joins each window with sep. With overlap 0 the windows partition
// the unit sequence exactly.
func window(units []string, size, overlap int, sep string) []string {
	if len(units) == 0 {
		return nil
	}
	step := size - overlap
	chunks := make([]string, 0, (len(units)+step-1)/step)
	for i := 0; i < len(units); i += step {
		end := i + size
		if end > len(units) {
			end = len(units)
		}
		chunks = append(chunks, strings.Join(units[i:end], sep))
	}
	return chunks
}

// splitSentences splits text at '.', '!', or '?' followed by whitespace.
// The terminator stays with its sentence; empty sentences are dropped.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && isSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// accumulateParagraphs splits on blank-line boundaries and flushes the running
// buffer as one chunk whenever its joined length reaches minLength. A
// non-empty remainder is flushed at end of input even if under the threshold.
func accumulateParagraphs(text string, minLength int) []string {
	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var buf []string
	bufLen := 0
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		buf = append(buf, para)
		bufLen += len(para)
		// Joined length includes the "\n\n" separators between buffered paragraphs.
		if bufLen+2*(len(buf)-1) >= minLength {
			chunks = append(chunks, strings.Join(buf, "\n\n"))
			buf = buf[:0]
			bufLen = 0
		}
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, "\n\n"))
	}
	return chunks
}
