package intercept

import (
	"regexp"
	"strings"
)

// Kind is the classification of an intercepted request URL.
type Kind int

const (
	KindNone Kind = iota
	KindLobby
	KindMatchDetail
	KindGuess
)

func (k Kind) String() string {
	switch k {
	case KindLobby:
		return "lobby"
	case KindMatchDetail:
		return "match-detail"
	case KindGuess:
		return "guess"
	default:
		return "none"
	}
}

var (
	// Match detail is a strict path shape: the match id followed by
	// end-of-path or query string only. Substring matching would also catch
	// sibling endpoints like /guess and /result.
	matchDetailRe = regexp.MustCompile(`(?i)/api/bullseye/[0-9a-f-]{36}(\?|$)`)
	guessRe       = regexp.MustCompile(`(?i)/api/bullseye/[0-9a-f-]{36}/guess(\?|$)`)
)

// Classify maps a request URL onto at most one known shape. Patterns are
// tried in fixed priority order: lobby, match detail, guess.
func Classify(url string) Kind {
	if isLobbyURL(url) {
		return KindLobby
	}
	if matchDetailRe.MatchString(url) {
		return KindMatchDetail
	}
	if guessRe.MatchString(url) {
		return KindGuess
	}
	return KindNone
}

// isLobbyURL covers the two independent lobby sub-patterns: the party lobby
// fetch and the lobby join call.
func isLobbyURL(url string) bool {
	if strings.Contains(url, "/api/parties/v2/") && strings.Contains(url, "/lobby") {
		return true
	}
	if strings.Contains(url, "/api/lobby/") && strings.Contains(url, "/join") {
		return true
	}
	return false
}
