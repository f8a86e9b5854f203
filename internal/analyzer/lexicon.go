package analyzer

// personalPronouns are the first-person pronouns counted by Calculate
var personalPronouns = []string{
	"i", "me", "my", "mine", "myself",
	"we", "us", "our", "ours", "ourselves",
}

const (
	vowels         = "aeiouy"
	longWordLength = 6
)
