package generation

import (
	"fmt"
	"strings"
)

// #region constants

// lastResortRoast is returned when even the safety call fails.
const lastResortRoast = "😉 Tomo nota, pero hoy prefiero mantener la clase."

var toneInstructions = map[string]string{
	"sarcastic": "Style: sharp sarcasm without explicit insults. Clever, creative humor.",
	"subtle":    "Style: sophisticated irony. Use wordplay and double meanings.",
	"direct":    "Style: direct but intelligent humor. Get to the point and keep the wit.",
}

var toneIntensity = map[string]int{
	"flanders":   2,
	"balanceado": 3,
	"canalla":    4,
	"nsfw":       5,
}

// #endregion

// #region builders

// basicPrompt is the single-pass prompt with moderation built in.
func basicPrompt(req Request, cfg PlanConfig) (string, string) {
	var b strings.Builder
	b.WriteString("You are Roastr, a bot that answers social media comments with funny, smart roasts with a touch of sarcasm.\n\n")
	b.WriteString("Mandatory rules:\n")
	b.WriteString("1. Always follow platform content policies: no hate speech, graphic violence, discrimination or direct harassment.\n")
	if cfg.Strictness == "strict" {
		b.WriteString("2. Keep the roast intensity low: witty, never offensive.\n")
	} else {
		b.WriteString("2. Keep the roast witty and biting but never cruel.\n")
	}
	b.WriteString("3. No explicit sexual content.\n")
	b.WriteString("4. Avoid terms that trigger automatic filters.\n")
	b.WriteString("5. Detect the comment's language and answer in the same language.\n")
	b.WriteString("6. Reply with the roast text only.\n\n")
	fmt.Fprintf(&b, "Tone: %s (intensity %d/5)\nPlan: %s\n", toneOf(req, cfg), intensity(toneOf(req, cfg)), cfg.Plan)
	b.WriteString(toneInstruction(req.Tone))

	user := fmt.Sprintf("Comment (toxicity %.2f): %q", req.ToxicityScore, req.Text)
	return b.String(), user
}

// advancedPrompt is the creative prompt used inside the quality-control
// loop. feedback carries the previous review's reasons.
func advancedPrompt(req Request, cfg PlanConfig, feedback string) (string, string) {
	var b strings.Builder
	b.WriteString("You are Roastr, an advanced roast generator for premium users.\n")
	b.WriteString("Be creative and sophisticated: a quality-control panel reviews every roast.\n\n")
	fmt.Fprintf(&b, "Tone: %s (intensity %d/5)\nPlan: %s\n", toneOf(req, cfg), intensity(toneOf(req, cfg)), cfg.Plan)
	if cfg.StylePrompt != "" {
		fmt.Fprintf(&b, "Custom style: %s\n", cfg.StylePrompt)
	}
	b.WriteString(toneInstruction(req.Tone))
	b.WriteString("\nDetect the comment's language and answer in the same language. Reply with the roast only.")
	if feedback != "" {
		fmt.Fprintf(&b, "\n\nThe previous attempt was sent back by reviewers: %s. Fix those problems.", feedback)
	}

	user := fmt.Sprintf("Comment: %q", req.Text)
	return b.String(), user
}

// safetyPrompt is the most conservative prompt there is.
func safetyPrompt(req Request) (string, string) {
	system := "You are Roastr, a bot that answers with witty and safe comments.\n\n" +
		"Strict rules:\n" +
		"- Be witty but completely harmless\n" +
		"- Use very light, friendly humor\n" +
		"- Avoid anything that could be problematic\n" +
		"- One or two short sentences at most\n" +
		"- Be funny without being aggressive\n\n" +
		"Reply with the safe roast only."
	return system, fmt.Sprintf("Comment: %q", req.Text)
}

func toneOf(req Request, cfg PlanConfig) string {
	if req.Tone != "" {
		return req.Tone
	}
	if cfg.Tone != "" {
		return cfg.Tone
	}
	return "balanceado"
}

func intensity(tone string) int {
	if n, ok := toneIntensity[strings.ToLower(tone)]; ok {
		return n
	}
	return 3
}

func toneInstruction(tone string) string {
	if s, ok := toneInstructions[strings.ToLower(tone)]; ok {
		return s + "\n"
	}
	return toneInstructions["sarcastic"] + "\n"
}

// #endregion
