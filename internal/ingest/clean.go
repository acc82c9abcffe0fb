package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Survey exports are often pasted through word processors.
var punctuationFolder = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201C", "\"", "\u201D", "\"",
	"\u2013", "-", "\u2014", "--", "\u2026", "...", "\u00a0", " ",
)

// CleanContent strips a UTF-8 BOM and replaces invalid UTF-8. Everything
// else is kept byte for byte.
func CleanContent(b []byte, src string) string {
	b = bytes.TrimPrefix(b, utf8BOM)

	if !utf8.Valid(b) {
		log.Warnf("%s: invalid UTF-8, replacing invalid chars", src)
		b = bytes.ToValidUTF8(b, []byte(string(utf8.RuneError)))
	}
	return string(b)
}

// FoldPunctuation rewrites typographic quotes, dashes, ellipses and
// non-breaking spaces in every comment as ASCII, then re-encodes Cleaned in
// the file's format.
func (d *Dataset) FoldPunctuation() error {
	for i, c := range d.Comments {
		d.Comments[i] = punctuationFolder.Replace(c)
	}

	switch strings.ToLower(filepath.Ext(d.Name)) {
	case ".json":
		b, err := json.Marshal(d.Comments)
		if err != nil {
			return fmt.Errorf("encode %s: %w", d.Name, err)
		}
		d.Cleaned = string(b)
	case ".csv":
		var buf strings.Builder
		w := csv.NewWriter(&buf)
		if len(d.Comments) > 0 {
			if err := w.Write(d.Comments); err != nil {
				return fmt.Errorf("encode %s: %w", d.Name, err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return fmt.Errorf("encode %s: %w", d.Name, err)
		}
		d.Cleaned = buf.String()
	}
	return nil
}
