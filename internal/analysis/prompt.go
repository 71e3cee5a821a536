package analysis

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the persona, the task instructions, and the journal
// content into a single prompt. Pure function of its inputs; the same entry,
// persona, and mode always produce byte-identical output.
func BuildPrompt(content string, persona PersonaProfile, analysisOnly bool) string {
	var b strings.Builder

	b.WriteString(personaText(persona))
	b.WriteString("\n\nYou are helping a user with their private journal entry.\n\n")

	if analysisOnly {
		b.WriteString("Your task is to analyze the entry WITHOUT replying to the user:\n")
		b.WriteString("1) Estimate their emotional state using a fixed label set and intensity.\n")
		b.WriteString("2) Estimate how the entry distributes over four life themes.\n\n")
		b.WriteString("The \"reply\" field MUST be exactly an empty string: \"\". Do not write a reply.\n\n")
	} else {
		b.WriteString("Your task is to:\n")
		b.WriteString("1) Write an empathetic reply directly to the user.\n")
		b.WriteString("2) Estimate their emotional state using a fixed label set and intensity.\n")
		b.WriteString("3) Estimate how the entry distributes over four life themes.\n\n")
		b.WriteString("Rules for the REPLY:\n")
		b.WriteString("- Acknowledge and validate feelings.\n")
		b.WriteString("- Do NOT copy long sentences or lists from the journal.\n")
		b.WriteString("- You may briefly paraphrase one key phrase, but do not repeat the same negative wording many times.\n")
		b.WriteString("- Focus on adding something new and supportive, instead of repeating what the user already wrote.\n")
		b.WriteString("- Avoid diagnosis, disorders, or medication advice.\n")
		b.WriteString("- If the situation seems very serious or risky, gently suggest reaching out to real-world support.\n\n")
		b.WriteString(replyLengthRules(persona.ReplyLengthHint))
		b.WriteString("\n")
	}

	b.WriteString("Emotion classification:\n")
	b.WriteString("- emotion must be ONE of: \"joy\", \"calm\", \"tired\", \"anxiety\", \"sadness\", \"anger\".\n")
	b.WriteString("- intensity must be an integer: 1 = low, 2 = medium, 3 = high.\n")
	b.WriteString("- If you truly cannot decide the emotion, set emotion to null and intensity to null.\n\n")

	b.WriteString("Theme distribution:\n")
	b.WriteString("- theme_scores must contain exactly the keys \"work\", \"hobbies\", \"social\", \"other\".\n")
	b.WriteString("- Each value is between 0 and 1, and the four values MUST sum to 1.\n")
	b.WriteString("- Route anything that fits no specific theme into \"other\".\n")
	b.WriteString("- primary_theme must be the key with the highest score, or null.\n\n")

	b.WriteString("OUTPUT FORMAT (VERY IMPORTANT):\n")
	b.WriteString("Return ONLY a single JSON object matching this JSON Schema, with no extra commentary:\n\n")
	b.WriteString(outputSchemaJSON)
	b.WriteString("\n\nDo not write any other text outside this JSON.\n\n")

	b.WriteString("The user's journal entry is:\n\n")
	b.WriteString("\"\"\"")
	b.WriteString(content)
	b.WriteString("\"\"\"")

	return b.String()
}

func personaText(persona PersonaProfile) string {
	if prompt := strings.TrimSpace(persona.PersonaPrompt); prompt != "" {
		return prompt
	}
	name := strings.TrimSpace(persona.DisplayName)
	if name == "" {
		name = "a journaling companion"
	}
	return fmt.Sprintf(
		"You are %s, a journaling companion. "+
			"You respond in a warm, non-judgmental way. "+
			"You do not diagnose or give medical advice. "+
			"If things sound very serious, gently encourage the user to seek professional help in real life.",
		name,
	)
}

func replyLengthRules(hint string) string {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "short":
		return "Reply length rules:\n- Reply in 1-3 short sentences, whatever the journal length.\n"
	case "long":
		return "Reply length rules:\n- Reply in one or two medium paragraphs.\n- Even for a very short journal, offer a little more depth than a one-liner.\n"
	default:
		return "Reply length rules:\n" +
			"- If the journal is very short (1-2 sentences), reply in 1-3 short sentences.\n" +
			"- If the journal is medium length, reply in about 3-6 sentences.\n" +
			"- If the journal is very long, reply in one medium paragraph (not multiple long paragraphs).\n"
	}
}
