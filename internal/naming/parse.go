package naming

import (
	"errors"
	"regexp"
	"strings"
)

// ErrUnparsableReply is returned when a service reply holds no usable name.
var ErrUnparsableReply = errors.New("reply contains no quoted name")

const maxBareWords = 4

var quoted = regexp.MustCompile(`["“]([^"”]+)["”]`)

// ParseServiceReply extracts a name from a free-text service reply. A quoted
// phrase wins; otherwise a short bare reply is accepted as the name. The
// literal "no" reports rejected.
func ParseServiceReply(reply string) (name string, rejected bool, err error) {
	text := strings.ToLower(strings.TrimSpace(reply))
	if m := quoted.FindStringSubmatch(text); m != nil {
		text = m[1]
	} else if len(strings.Fields(text)) > maxBareWords {
		return "", false, ErrUnparsableReply
	}
	text = cleanName(text)
	if text == "" {
		return "", false, ErrUnparsableReply
	}
	if text == Rejected {
		return "", true, nil
	}
	return text, false, nil
}

// ParseReviewAnswer interprets a reviewer's typed answer. An empty answer
// keeps the placeholder; "n" or "no" rejects the cluster.
func ParseReviewAnswer(answer, placeholder string) Outcome {
	a := cleanName(strings.ToLower(answer))
	switch a {
	case "":
		return HumanDecision{Name: placeholder, Accepted: true}
	case "n", Rejected:
		return Rejection{Reason: "rejected by reviewer"}
	}
	return HumanDecision{Name: a}
}

// cleanName trims punctuation and drops characters that would break a tag
// list or a folder name.
func cleanName(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'“”.!,`)
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '/', '\\', '|':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
