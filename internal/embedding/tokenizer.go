package embedding

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// bertVocabSize bounds hashed token IDs; [CLS]=101 and [SEP]=102 follow the
// BERT convention expected by MiniLM-family ONNX exports.
const bertVocabSize = 30000

// Tokenizer produces the three BERT-style input slices for an ONNX session.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// WordTokenizer lowercases, splits on whitespace and punctuation, and maps
// each word to a hashed token ID. It is not a trained WordPiece vocabulary;
// embeddings remain deterministic but approximate the model's intended input.
type WordTokenizer struct{}

// Tokenize returns padded token IDs of length maxTokens.
func (t *WordTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = 101 // [CLS]
	attentionMask[0] = 1

	pos := 1
	for _, word := range SplitWords(strings.ToLower(text)) {
		if pos >= maxTokens-1 {
			break
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		inputIDs[pos] = int64(h.Sum32() % bertVocabSize)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = 102 // [SEP]
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords splits text into runs of letters and digits, dropping everything
// else. Returns nil for blank input.
func SplitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
