// Package prompt fills prompt templates.
//
// A template marks its slots as !<INPUT 0>!, !<INPUT 1>!, and so on. Text
// before a <commentblockmarker>###</commentblockmarker> line is an author
// comment and is dropped from the rendered prompt.
package prompt

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CommentMarker separates a template's author comment from its body.
const CommentMarker = "<commentblockmarker>###</commentblockmarker>"

// Fill substitutes inputs into template, strips the comment block, and trims
// surrounding whitespace. Slots without a matching input are left as-is.
func Fill(template string, inputs ...string) string {
	out := template
	for i, in := range inputs {
		out = strings.ReplaceAll(out, slot(i), in)
	}
	if _, body, ok := strings.Cut(out, CommentMarker); ok {
		out = body
	}
	return strings.TrimSpace(out)
}

// Load reads the template at path and fills it.
func Load(path string, inputs ...string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("prompt: read template: %w", err)
	}
	return Fill(string(data), inputs...), nil
}

func slot(i int) string { return "!<INPUT " + strconv.Itoa(i) + ">!" }
