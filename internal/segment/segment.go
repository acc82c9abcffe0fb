// Package segment prepares text for a comment split. The backend splits a
// comment on newlines, so a proposal is the comment rewritten with one
// sentence per line.
package segment

import (
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	log "github.com/sirupsen/logrus"
)

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

func loadTokenizer() *sentences.DefaultSentenceTokenizer {
	tokenizerOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			log.Warnf("segment: failed to load english sentence tokenizer, proposals fall back to line breaks: %v", err)
			return
		}
		tokenizer = t
	})
	return tokenizer
}

// ProposeSplit rewrites text with each sentence on its own line. Existing
// line breaks are kept and blank lines dropped.
func ProposeSplit(text string) string {
	tok := loadTokenizer()
	var out []string
	for _, line := range Lines(text) {
		if tok == nil {
			out = append(out, line)
			continue
		}
		for _, s := range tok.Tokenize(line) {
			if sent := strings.TrimSpace(s.Text); sent != "" {
				out = append(out, sent)
			}
		}
	}
	return strings.Join(out, "\n")
}

// Lines returns the rows a split of text would produce: each line trimmed,
// blank lines skipped.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
