package chat

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/koru/internal/models"
)

// basePrompt is the fixed instruction text sent with every generation call.
const basePrompt = `You are Koru, a friendly and knowledgeable crypto-education assistant.

Your role:
- Explain cryptocurrency, blockchain, and web3 concepts in clear, accessible language.
- Adjust depth and vocabulary to the learner's level when you know it.
- Use concrete examples and analogies where they help understanding.

Rules:
- You provide education only. Never give specific investment advice, price
  predictions, or recommendations to buy or sell any asset.
- If asked for investment advice, explain the relevant concepts instead and
  remind the user that you cannot advise on specific investments.
- Be honest about risk. Crypto assets are volatile and funds can be lost.`

// ComposeSystemPrompt builds the system instructions for a generation call.
// Pure function of an optional profile: when present, a personalization
// block is appended to the fixed base text.
func ComposeSystemPrompt(profile *models.Profile) string {
	if profile == nil {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nAbout this learner:\n")
	if profile.ExperienceLevel != "" {
		fmt.Fprintf(&b, "- Experience level: %s\n", profile.ExperienceLevel)
	}
	if len(profile.Objectives) > 0 {
		fmt.Fprintf(&b, "- Learning objectives: %s\n", strings.Join(profile.Objectives, ", "))
	}
	if profile.RiskTolerance != "" {
		fmt.Fprintf(&b, "- Risk tolerance: %s\n", profile.RiskTolerance)
	}
	return strings.TrimRight(b.String(), "\n")
}
