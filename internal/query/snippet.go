package query

import (
	"html"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// snippetTargetLength is the "target length" a snippet window expands to
// (§4.5 "Snippet generation").
const snippetTargetLength = 120

var snippetFolder = cases.Fold()

// Snippet locates the first case-folded, NFC-normalised match of any term
// in text, expands outward to snippetTargetLength honouring word breaks,
// HTML-escapes the result, and wraps each term occurrence in <b>…</b>. With
// no match, it returns the leading portion of text up to the first newline
// or the target length.
func Snippet(text string, terms []string) string {
	folded := snippetFolder.String(norm.NFC.String(text))

	foldedTerms := make([]string, 0, len(terms))
	for _, t := range terms {
		if ft := snippetFolder.String(norm.NFC.String(t)); ft != "" {
			foldedTerms = append(foldedTerms, ft)
		}
	}

	start := -1
	for _, t := range foldedTerms {
		if idx := strings.Index(folded, t); idx >= 0 && (start == -1 || idx < start) {
			start = idx
		}
	}

	var window string
	if start == -1 {
		window = leadingPortion(folded)
	} else {
		window = expandWindow(folded, start)
	}
	return highlight(window, foldedTerms)
}

func leadingPortion(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return truncateRunes(text, snippetTargetLength)
}

func truncateRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// expandWindow grows the match at byteStart outward to roughly
// snippetTargetLength runes, snapping both edges to the nearest word break.
func expandWindow(text string, byteStart int) string {
	runes := []rune(text)
	matchRune := 0
	for i := range text {
		if i >= byteStart {
			break
		}
		matchRune++
	}

	half := snippetTargetLength / 2
	lo := matchRune - half
	if lo < 0 {
		lo = 0
	}
	hi := lo + snippetTargetLength
	if hi > len(runes) {
		hi = len(runes)
		lo = hi - snippetTargetLength
		if lo < 0 {
			lo = 0
		}
	}

	for lo > 0 && !unicode.IsSpace(runes[lo-1]) {
		lo--
	}
	for hi < len(runes) && !unicode.IsSpace(runes[hi]) {
		hi++
	}
	return string(runes[lo:hi])
}

func highlight(window string, terms []string) string {
	escaped := html.EscapeString(window)
	for _, t := range terms {
		escapedTerm := html.EscapeString(t)
		if escapedTerm == "" {
			continue
		}
		escaped = strings.ReplaceAll(escaped, escapedTerm, "<b>"+escapedTerm+"</b>")
	}
	return escaped
}
