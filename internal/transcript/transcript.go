// Package transcript converts between the backend's turn-indexed conversation
// map (question1, answer1, question2, ...) and an ordered list of entries.
//
// The indexed encoding only exists at the API boundary. Everything above this
// package works with []Entry.
package transcript

import (
	"regexp"
	"strconv"
)

const (
	questionPrefix = "question"
	answerPrefix   = "answer"
)

// Raw is a conversation exactly as the backend encodes it.
type Raw map[string]any

// Entry is one message in a transcript.
type Entry struct {
	Text       string `json:"text"`
	IsFromUser bool   `json:"is_from_user"`
}

var turnKey = regexp.MustCompile(`^(question|answer)([1-9][0-9]*)$`)

// Decode rebuilds the ordered transcript. Turns are read from 1 upwards and
// the scan stops at the first turn with neither a question nor an answer, so
// anything after a gap is dropped. The backend numbers turns contiguously;
// use Gap to detect responses that break that rule.
func Decode(raw Raw) []Entry {
	var entries []Entry
	for i := 1; ; i++ {
		q, hasQ := field(raw, questionPrefix, i)
		a, hasA := field(raw, answerPrefix, i)
		if !hasQ && !hasA {
			return entries
		}
		if hasQ {
			entries = append(entries, Entry{Text: q, IsFromUser: true})
		}
		if hasA {
			entries = append(entries, Entry{Text: a, IsFromUser: false})
		}
	}
}

// Turns returns how many contiguous turns Decode would read.
func Turns(raw Raw) int {
	n := 0
	for i := 1; ; i++ {
		_, hasQ := field(raw, questionPrefix, i)
		_, hasA := field(raw, answerPrefix, i)
		if !hasQ && !hasA {
			return n
		}
		n++
	}
}

// Gap reports the first missing turn index when turns exist beyond it.
func Gap(raw Raw) (int, bool) {
	missing := Turns(raw) + 1
	for k, v := range raw {
		m := turnKey.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		if s, ok := v.(string); !ok || s == "" {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err == nil && n > missing {
			return missing, true
		}
	}
	return 0, false
}

// CountTurns counts the turns entries occupy, grouping them the way Encode
// does. Archived and published turn counts use this definition.
func CountTurns(entries []Entry) int {
	turns := 0
	answered := true
	for _, e := range entries {
		switch {
		case e.IsFromUser:
			turns++
			answered = false
		case answered:
			turns++
		default:
			answered = true
		}
	}
	return turns
}

// Encode is the inverse of Decode. A user entry opens a new turn; a bot entry
// fills the answer of the open turn, or opens one if that answer is taken.
func Encode(entries []Entry) Raw {
	raw := Raw{}
	turn := 0
	answered := true
	for _, e := range entries {
		if e.IsFromUser {
			turn++
			answered = false
			raw[key(questionPrefix, turn)] = e.Text
			continue
		}
		if answered {
			turn++
		}
		raw[key(answerPrefix, turn)] = e.Text
		answered = true
	}
	return raw
}

func field(raw Raw, prefix string, i int) (string, bool) {
	v, ok := raw[key(prefix, i)]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func key(prefix string, i int) string {
	return prefix + strconv.Itoa(i)
}
