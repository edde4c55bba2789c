package prompts

import "fmt"

// categoryContexts describes what a learner practises in each major/minor category.
// Minor keys are matched exactly; the empty key is the major category's fallback.
var categoryContexts = map[string]map[string]string{
	"여행": {
		"":   "English expressions and vocabulary for travelling",
		"배낭": "English for backpacking trips: hostels, transport and asking for directions",
		"가족": "English for family trips: bookings, sightseeing and dining together",
		"친구": "English for travelling with friends: planning, activities and small talk",
	},
	"비즈니스": {
		"":   "English expressions and vocabulary for business",
		"회사": "English for everyday office work: email, requests and reporting",
		"미팅": "English for taking part in meetings with clients and partners",
		"회의": "English for running and joining internal meetings",
	},
	"학업": {
		"":    "English expressions and vocabulary for study",
		"대학교": "English for university lectures, assignments and campus life",
		"학원":  "English for academy classes and exam preparation",
		"대학원": "English for graduate seminars, research and academic writing",
	},
	"일상생활": {
		"":    "English expressions and vocabulary for daily life",
		"가족":  "English for daily conversations with family",
		"친구":  "English for casual conversations with friends",
		"선생님": "English for talking with teachers",
	},
}

// CategoryContext returns a one-line learning goal for a category pair.
func CategoryContext(major, minor string) string {
	if minors, ok := categoryContexts[major]; ok {
		if s, ok := minors[minor]; ok {
			return s
		}
		return minors[""]
	}
	if major == "" && minor == "" {
		return "general English expressions and vocabulary"
	}
	return fmt.Sprintf("English expressions and vocabulary used in %s situations around %s", major, minor)
}
