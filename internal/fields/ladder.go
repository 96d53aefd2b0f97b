package fields

// Match is a rule hit: the raw text captured and the rule that produced it.
type Match struct {
	Raw    string
	Source string
}

// Found reports whether the match carries a value.
func (m Match) Found() bool { return m.Raw != "" }

// Rule inspects text and reports a match, or false to defer to the next rule.
type Rule func(text string) (Match, bool)

// Ladder evaluates rules in order and stops at the first success.
type Ladder []Rule

// First returns the first rule hit, or a zero Match.
func (l Ladder) First(text string) Match {
	for _, rule := range l {
		if m, ok := rule(text); ok {
			return m
		}
	}
	return Match{}
}
