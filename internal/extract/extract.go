// Package extract pulls program source out of a model reply.
package extract

import (
	"errors"
	"strings"

	"github.com/petasbytes/fig2code/internal/conversation"
)

// DefaultLanguage is the fence tag looked for when none is configured.
const DefaultLanguage = "python"

const fence = "```"

// ErrMalformedResponse is returned when a reply has no leading text block.
var ErrMalformedResponse = errors.New("malformed response")

// Code returns the body of the first fenced block tagged exactly lang, or
// text unchanged when no such block is found. Only spaces, tabs or a
// carriage return may follow the tag on the opening line, which must end in
// a newline and be followed by a closing fence.
func Code(text, lang string) string {
	if lang == "" {
		lang = DefaultLanguage
	}
	open := fence + lang
	for from := 0; ; {
		i := strings.Index(text[from:], open)
		if i < 0 {
			return text
		}
		rest := text[from+i+len(open):]
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return text
		}
		if strings.Trim(rest[:nl], " \t\r") != "" {
			// A longer tag such as python3; keep looking.
			from += i + len(open)
			continue
		}
		body := rest[nl+1:]
		end := strings.Index(body, fence)
		if end < 0 {
			return text
		}
		return body[:end]
	}
}

// FromResponse extracts code from the first content block of resp.
func FromResponse(resp *conversation.Response, lang string) (string, error) {
	text, ok := resp.Text()
	if !ok {
		return "", ErrMalformedResponse
	}
	return Code(text, lang), nil
}
