// Package xmlutil escapes user-supplied text before it is embedded in
// XML-delimited prompt templates, so transcript content cannot break out
// of its tag.
package xmlutil

import (
	"encoding/xml"
	"strings"
)

// Escape replaces characters with special meaning in XML.
func Escape(s string) string {
	var buf strings.Builder
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		// EscapeText only fails on invalid UTF-8; return the input unchanged.
		return s
	}
	return buf.String()
}
