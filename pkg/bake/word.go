// Package bake implements the core of a dependency-graph build engine whose
// rules are written as equations over a small pattern language: a rule
// associates a pattern of output words with a pattern of input words and an
// optional command. The package exposes four collaborating pieces:
//
//   - a Matcher that binds a multi-variable pattern over a sequence of words
//   - an Expander that substitutes bindings back into a template
//   - a Registry that classifies rule definitions into grounded, ungrounded,
//     and global forms
//   - a Solver that turns a requested goal set into a partially ordered
//     build Plan
//
// Everything in this package is CPU-bound and side-effect free except for
// the optional speculative-command callback used by ungrounded rules (see
// CommandRunner). Executing a Plan against the outside world is the job of
// the sibling internal/executor and internal/backend packages.
package bake

import "strings"

// Word is a single token: a non-empty run of non-space characters. Word
// lists are unordered in most contexts (dependencies commute); ordering
// matters only for destructuring matches, where positional factoring is
// significant.
type Word string

// WordList is an ordered sequence of Words.
type WordList []Word

// Join concatenates the words with a single space, matching the %in/%out
// synthetic command bindings described in the external interface.
func (wl WordList) Join() Word {
	ss := make([]string, len(wl))
	for i, w := range wl {
		ss[i] = string(w)
	}
	return Word(strings.Join(ss, " "))
}

// Clone returns an independent copy of the list.
func (wl WordList) Clone() WordList {
	out := make(WordList, len(wl))
	copy(out, wl)
	return out
}

// dedupePreserveOrder returns words with duplicates removed, keeping the
// first occurrence's position. Used to build the solver's initial goal
// vector, where insertion order is part of the plan's determinism contract.
func dedupePreserveOrder(words []Word) []Word {
	seen := make(map[Word]struct{}, len(words))
	out := make([]Word, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
