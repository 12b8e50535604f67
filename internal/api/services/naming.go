package services

import (
	"regexp"
	"strings"
	"unicode"
)

const fallbackContractName = "GeneratedContract"

var (
	compilePhrases = phraseSet(
		"compile", "compile contract", "compile this contract",
		"compile the contract", "compile code", "compile it",
	)
	deployPhrases = phraseSet(
		"deploy", "deploy contract", "deploy this contract",
		"deploy the contract", "deploy it",
	)
	generateTriggers = []string{
		"create a contract", "create contract", "create a smart contract",
		"generate a contract", "generate contract", "generate a smart contract",
		"write a contract", "write a smart contract",
		"make a contract", "build a contract", "new contract",
	}

	// Tried in order; the first non-stopword capture wins.
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:called|named)\s+["'` + "`" + `]?([A-Za-z_][A-Za-z0-9_]*)`),
		regexp.MustCompile(`(?i)\bcontract\s+for\s+(?:(?:a|an|the)\s+)?([A-Za-z_][A-Za-z0-9_]*)`),
		regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*)\s+contract\b`),
		regexp.MustCompile(`(?i)\bcontract\s+([A-Za-z_][A-Za-z0-9_]*)`),
	}

	codeFence = regexp.MustCompile("(?s)```(?:solidity|sol)?[ \\t]*\\r?\\n(.*?)```")

	stopWords = phraseSet(
		"a", "an", "the", "this", "that", "these", "my", "me", "our", "your",
		"for", "to", "of", "with", "and", "or", "in", "on", "which", "who",
		"please", "can", "could", "you", "i", "we", "want", "need", "would", "like",
		"create", "generate", "write", "make", "build", "new", "simple", "basic",
		"smart", "solidity", "contract", "contracts", "code", "called", "named",
		"some", "is", "it", "be", "should", "will",
		"handles", "manages", "allows", "implements", "supports",
	)
)

func phraseSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func isStopWord(w string) bool {
	_, ok := stopWords[strings.ToLower(w)]
	return ok
}

type intent int

const (
	intentChat intent = iota
	intentCompile
	intentDeploy
	intentGenerate
)

func (i intent) String() string {
	switch i {
	case intentCompile:
		return "compile"
	case intentDeploy:
		return "deploy"
	case intentGenerate:
		return "generate"
	}
	return "chat"
}

// classify matches compile and deploy phrases exactly and generation
// triggers as substrings, all case-insensitively.
func classify(message string) intent {
	msg := strings.ToLower(strings.TrimSpace(message))
	if _, ok := compilePhrases[msg]; ok {
		return intentCompile
	}
	if _, ok := deployPhrases[msg]; ok {
		return intentDeploy
	}
	for _, trigger := range generateTriggers {
		if strings.Contains(msg, trigger) {
			return intentGenerate
		}
	}
	return intentChat
}

// ExtractContractName guesses a Solidity identifier for the contract a
// prompt asks for.
func ExtractContractName(message string) string {
	for _, re := range namePatterns {
		for _, m := range re.FindAllStringSubmatch(message, -1) {
			if !isStopWord(m[1]) {
				if name := sanitizeIdentifier(m[1]); name != "" {
					return name
				}
			}
		}
	}

	words := strings.FieldsFunc(message, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, w := range words {
		if len(w) >= 4 && !isStopWord(w) {
			if name := sanitizeIdentifier(w); name != "" {
				return name
			}
		}
	}
	return fallbackContractName
}

// sanitizeIdentifier keeps [A-Za-z0-9_], capitalises the first letter and
// makes sure the result does not start with a digit.
func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "C" + out
	}
	return strings.ToUpper(out[:1]) + out[1:]
}

// ExtractSolidity returns the first fenced code block of an LLM reply, or
// the whole reply when there is none.
func ExtractSolidity(reply string) string {
	if m := codeFence.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(reply)
}
