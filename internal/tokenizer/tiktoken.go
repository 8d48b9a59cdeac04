package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the tiktoken encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// Dictionaries are embedded; nothing is downloaded at runtime.
var offlineLoader sync.Once

// TikToken splits text into OpenAI BPE pieces. Each piece is the decoded
// string of one BPE id, so the resulting vocabulary is built over pieces and
// not over tiktoken's own id space.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken loads the named tiktoken encoding. An empty name selects
// DefaultEncoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}

	offlineLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encodingName, err)
	}

	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Tokenize returns the BPE pieces of text.
func (t *TikToken) Tokenize(text string) []string {
	ids := t.encoding.Encode(text, nil, nil)

	pieces := make([]string, len(ids))
	for i, id := range ids {
		pieces[i] = t.encoding.Decode([]int{id})
	}

	return pieces
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}
