package suggest

import (
	"hash/fnv"
	"strings"

	"github.com/jhousvawls/daily-coach/internal/schema"
)

var defaultQuotes = map[string][]schema.DailyQuote{
	"motivated": {
		{Text: "Nothing will work unless you do.", Author: "Maya Angelou"},
		{Text: "Well begun is half done.", Author: "Aristotle"},
	},
	"tired": {
		{Text: "It does not matter how slowly you go as long as you do not stop.", Author: "Confucius"},
		{Text: "Rest when you're weary. Refresh and renew yourself.", Author: "Ralph Marston"},
	},
	"anxious": {
		{Text: "Do what you can, with what you have, where you are.", Author: "Theodore Roosevelt"},
	},
	"": {
		{Text: "The secret of getting ahead is getting started.", Author: "Mark Twain"},
		{Text: "Action is the foundational key to all success.", Author: "Pablo Picasso"},
		{Text: "Small deeds done are better than great deeds planned.", Author: "Peter Marshall"},
	},
}

// fallbackQuote picks a static quote for mood, stable for a given mood.
func fallbackQuote(mood string) schema.DailyQuote {
	key := strings.ToLower(strings.TrimSpace(mood))
	quotes, ok := defaultQuotes[key]
	if !ok {
		quotes = defaultQuotes[""]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	q := quotes[h.Sum32()%uint32(len(quotes))]
	q.Mood = mood
	return q
}

func fallbackSubtasks(focus string) []string {
	focus = strings.TrimSpace(focus)
	if focus == "" {
		focus = "the goal"
	}
	return []string{
		"Define what done looks like for " + focus,
		"List the first three concrete actions",
		"Do the smallest action today",
		"Review progress and plan the next step",
	}
}
