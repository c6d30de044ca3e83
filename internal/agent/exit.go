package agent

var exitTokens = map[string]struct{}{
	"exit": {},
	"quit": {},
	"q":    {},
	"bye":  {},
	"stop": {},
	"end":  {},
}

// IsExitToken reports whether input, matched exactly, ends the session
func IsExitToken(input string) bool {
	_, ok := exitTokens[input]
	return ok
}
