package assistant

import "strings"

const (
	ReplyRefill        = "I'd be happy to help you refill your prescription. Would you like me to send a refill request?"
	ReplyReminder      = "I can set up medication reminders for you. What time would you like to be reminded?"
	ReplySideEffect    = "If you're experiencing side effects, you should contact your healthcare provider for guidance."
	ReplyGreeting      = "Hello! How can I assist you with your medications today?"
	ReplyNotUnderstood = "I'm not sure how to help with that. Could you please clarify?"
)

type rule struct {
	keywords []string
	reply    string
}

// Order matters: the first rule with a matching keyword wins.
var rules = []rule{
	{keywords: []string{"refill", "prescription"}, reply: ReplyRefill},
	{keywords: []string{"reminder", "schedule"}, reply: ReplyReminder},
	{keywords: []string{"side effect", "reaction"}, reply: ReplySideEffect},
	{keywords: []string{"hello", "hi"}, reply: ReplyGreeting},
}

// Reply picks the canned answer for text by case-insensitive substring match.
// "hi" matches inside other words, so "this" is a greeting.
func Reply(text string) string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.reply
			}
		}
	}
	return ReplyNotUnderstood
}
