package langanalysis

import (
	"regexp"
	"strings"
)

var (
	srtIndexRe    = regexp.MustCompile(`^\d+$`)
	timestampRe   = regexp.MustCompile(`\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}\s*-->\s*\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}.*`)
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
	assOverrideRe = regexp.MustCompile(`\{[^}]*\}`)
	bracketCueRe  = regexp.MustCompile(`\[[^\]]*\]|\([A-Z][A-Z\s]+\)`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// StripMarkup reduces a subtitle file to plain dialogue text. Cue indices,
// timestamps, WEBVTT headers, styling tags, and speaker or sound cues are
// removed. The result is whitespace-normalized prose suitable for NLP.
func StripMarkup(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "\uFEFF"))
		if line == "" {
			continue
		}
		if srtIndexRe.MatchString(line) || timestampRe.MatchString(line) {
			continue
		}
		if line == "WEBVTT" || strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "STYLE") {
			continue
		}
		// ASS dialogue lines carry the text in the last comma field.
		if strings.HasPrefix(line, "Dialogue:") {
			parts := strings.SplitN(line, ",", 10)
			if len(parts) < 10 {
				continue
			}
			line = strings.ReplaceAll(parts[9], `\N`, " ")
		} else if strings.ContainsRune(line, ':') && isASSHeader(line) {
			continue
		}
		line = assOverrideRe.ReplaceAllString(line, "")
		line = htmlTagRe.ReplaceAllString(line, "")
		line = bracketCueRe.ReplaceAllString(line, "")
		line = strings.TrimPrefix(strings.TrimSpace(line), "- ")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return whitespaceRe.ReplaceAllString(strings.Join(lines, " "), " ")
}

func isASSHeader(line string) bool {
	for _, prefix := range []string{"Format:", "Style:", "Title:", "ScriptType:", "PlayResX:", "PlayResY:", "Comment:"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
