package scorer

import "fmt"

const systemInstruction = `You are an expert linguist who specializes in telling human-written text apart from text generated by large language models. You always answer with a single JSON object and nothing else.`

// humanExample and aiExample are the fixed few-shot examples embedded in every prompt
const (
	humanExample = `ok so i finally tried that ramen place on 5th - honestly the broth was kinda salty but my friend loved it lol. we waited like 40 min tho, not sure i'd go back on a friday.`
	aiExample    = `The restaurant offers a delightful culinary experience. The broth is rich and flavorful, complemented by perfectly cooked noodles. Additionally, the attentive staff and welcoming atmosphere make it an excellent choice for both casual diners and food enthusiasts.`
)

// buildCompletionPrompt embeds text into the fixed detection prompt
func buildCompletionPrompt(text string) string {
	return fmt.Sprintf(`Analyze the following text and estimate the probability that it was generated by an AI model.

Evaluate these factors:
1. Sentence structure variety (uniform length and rhythm suggests AI)
2. Vocabulary choices (generic, overly polished or repetitive wording)
3. Personal voice (anecdotes, opinions, first-person experience)
4. Natural imperfections (typos, slang, fragments, informal punctuation)
5. Transitions and connectors ("Additionally", "Furthermore", "In conclusion")
6. Hedging and balance (even-handed qualifiers on every claim)
7. Specificity (concrete names, numbers and details versus generalities)
8. Coherence pattern (formulaic paragraph organization)

Example of human-written text:
"%s"
Assessment: {"aiProbability": 10, "confidence": 85, "factors": ["informal tone", "personal anecdote", "slang and typos"], "likelySource": "human", "reasoning": "Casual voice with personal detail and natural imperfections."}

Example of AI-generated text:
"%s"
Assessment: {"aiProbability": 90, "confidence": 85, "factors": ["polished generic phrasing", "formulaic transitions", "no personal voice"], "likelySource": "ai", "reasoning": "Uniformly polished sentences with stock transitions and no concrete personal detail."}

Respond with a JSON object containing exactly these fields:
- aiProbability: number from 0 to 100
- confidence: number from 0 to 100
- factors: array of short strings naming the factors you observed
- likelySource: "human" or "ai"
- reasoning: one or two sentences explaining the assessment

Text to analyze:
"%s"`, humanExample, aiExample, text)
}
