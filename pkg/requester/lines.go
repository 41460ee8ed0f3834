package requester

import "strings"

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// joinLines splits body into lines the way a line reader does (\n, \r\n or a
// lone \r end a line) and joins them with sep. An empty sep reproduces the
// historical behaviour of dropping line breaks entirely.
func joinLines(body []byte, sep string) string {
	if len(body) == 0 {
		return ""
	}
	text := lineBreaks.Replace(string(body))
	text = strings.TrimSuffix(text, "\n")
	if sep == "\n" {
		return text
	}
	return strings.ReplaceAll(text, "\n", sep)
}
