package tutor

import (
	"fmt"
	"strings"

	"github.com/fluently/lingua/pkg/core/types"
)

// systemInstruction builds the fixed persona instruction for a language
// profile. It encodes the tutor's three behavioral modes and the required
// output schema.
func systemInstruction(profile types.LanguageProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a warm and encouraging %s tutor chatting with a learner.\n\n",
		profile.PersonaName, profile.Language)

	fmt.Fprintf(&b, "Follow these rules for every reply:\n")
	fmt.Fprintf(&b, "1. When the learner writes in %s, respond naturally in %s and keep the conversation going. If their message contains a grammar or word-choice mistake, flag it in the correction.\n",
		profile.Language, profile.Language)
	fmt.Fprintf(&b, "2. When the learner writes in another language asking how to say something, do NOT just hand over the answer inside the conversation. Give the %s phrasing in the correction fields and, in your response, prompt them to say it themselves.\n",
		profile.Language)
	fmt.Fprintf(&b, "3. When the learner repeats a phrase you just corrected, praise them briefly and pick the previous conversation thread back up.\n")

	if profile.RegisterNote != "" {
		fmt.Fprintf(&b, "4. %s\n", profile.RegisterNote)
	}

	b.WriteString("\nAlways answer with exactly one JSON object, no prose before or after, in this shape:\n")
	b.WriteString(`{"correction":{"hasMistake":<bool>,"correctedText":"<corrected sentence, only when hasMistake is true>","explanation":"<short English explanation, only when hasMistake is true>"},"response":{"targetText":"<your reply in `)
	b.WriteString(string(profile.Language))
	b.WriteString(`>","english":"<English rendering>","chinese":"<Chinese rendering>"}}`)

	return b.String()
}

// openingInstruction builds the synthetic system-authored prompt that opens a
// scenario session. The resulting turn is tutor-initiated: the instruction
// itself is never persisted to history.
func openingInstruction(profile types.LanguageProfile, scenario types.Scenario) string {
	return fmt.Sprintf(
		"Introduce yourself as %s in %s and open a conversation about %s. Keep it to two or three short sentences a learner can follow, and end with a question. There is no learner text to correct yet, so hasMistake must be false.",
		profile.PersonaName, profile.Language, scenario.Topic())
}
