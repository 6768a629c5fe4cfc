package agent

import (
	"errors"
	"regexp"
	"strconv"
)

// snippetRe matches one taylored block. The body is non-greedy and may span
// lines; the compute attribute is optional and opaque.
var snippetRe = regexp.MustCompile(`(?s)<taylored\s+number=["'](\d+)["'](?:\s+compute=["']([^"']*)["'])?>(.*?)</taylored>`)

// ErrNoSnippet is returned when a request body contains no taylored block.
var ErrNoSnippet = errors.New("no taylored block found")

// firstSnippetID extracts the number attribute of the first taylored block.
// Every output and error event of the resulting run is tagged with this id,
// even when the body carries further blocks.
func firstSnippetID(body string) (int, error) {
	m := snippetRe.FindStringSubmatch(body)
	if m == nil {
		return 0, ErrNoSnippet
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id <= 0 {
		return 0, ErrNoSnippet
	}
	return id, nil
}
