package translation

import (
	"fmt"
	"strings"
)

// systemPrompt frames the model as a conversational translator that answers
// with a JSON object only.
const systemPrompt = `You translate chat messages between people who speak different languages.
Keep the speaker's tone, register and intent: casual stays casual, formal stays formal, jokes and emphasis survive.
Put meaning before wording. Do not translate word for word; write what a native speaker would say so it reads as if it had been written in the target language.
Adapt idioms, slang and cultural references to equivalents that make sense to the reader instead of rendering them literally.
Use the conversation history only to resolve ambiguity in the last message. Never translate the history.
Leave code, URLs, e-mail addresses, numbers, @mentions and emoji exactly as written.
Do not add explanations, notes, quotes or alternatives.
Reply with a single JSON object: {"message": "<translated text>", "targetLanguage": "<target language code>"}.`

// ContextLine is one earlier message shown to the model for disambiguation.
type ContextLine struct {
	Text     string
	Language string
	// ByAuthor marks lines written by the author of the message being translated.
	ByAuthor bool
}

// Request is a single translation call.
type Request struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	History        []ContextLine
}

// UserPrompt renders the user turn for r.
func (r Request) UserPrompt() string {
	if len(r.History) == 0 {
		return fmt.Sprintf("Translate from %s to %s: %s", r.SourceLanguage, r.TargetLanguage, r.Text)
	}
	var b strings.Builder
	b.WriteString("Conversation History:\n")
	for i, l := range r.History {
		if i > 0 {
			b.WriteByte('\n')
		}
		who := "Other"
		if l.ByAuthor {
			who = "User"
		}
		fmt.Fprintf(&b, "%s: %s (%s)", who, l.Text, l.Language)
	}
	fmt.Fprintf(&b, "\n\nTranslate the last message from %s to %s: %s", r.SourceLanguage, r.TargetLanguage, r.Text)
	return b.String()
}
