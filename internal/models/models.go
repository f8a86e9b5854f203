package models

import "time"

// Mode selects which remote scoring paths an analysis uses
type Mode string

const (
	ModeStandard Mode = "standard" // completion scoring only
	ModeEnhanced Mode = "enhanced" // completion plus embedding for longer texts
)

// SourceModel labels which pipeline produced a result
type SourceModel string

const (
	SourceStandard SourceModel = "standard-openai"
	SourceEnhanced SourceModel = "enhanced-openai"
)

// Likely sources reported by the remote scorer
const (
	SourceHuman = "human"
	SourceAI    = "ai"
)

// AnalysisInput is the entry point payload for a single analysis
type AnalysisInput struct {
	Text   string `json:"text"`
	APIKey string `json:"-"`
	Mode   Mode   `json:"mode"`
}

// TextStats contains statistics derived solely from the input text
type TextStats struct {
	Words               int     `json:"words"`
	Sentences           int     `json:"sentences"`
	AvgWordsPerSentence float64 `json:"avg_words_per_sentence"`
	LongWords           int     `json:"long_words"`
	PersonalPronouns    int     `json:"personal_pronouns"`
	ReadabilityScore    float64 `json:"readability_score"`
	LexicalDiversity    float64 `json:"lexical_diversity"` // 0-1
}

// RemoteScore is the outcome of exactly one remote scoring call
type RemoteScore struct {
	AIProbability float64  `json:"ai_probability"` // 0-100
	Confidence    float64  `json:"confidence"`     // 0-100
	Factors       []string `json:"factors"`
	LikelySource  string   `json:"likely_source"` // human, ai
	Reasoning     string   `json:"reasoning"`
	Model         string   `json:"model"`
}

// APIDetails carries the remote model's own explanation
type APIDetails struct {
	Model             string   `json:"model"`
	ConfidenceFactors []string `json:"confidence_factors"`
	Reasoning         string   `json:"reasoning"`
}

// AnalysisResult is the final result for one analyzed text. It is built once and never persisted.
type AnalysisResult struct {
	ID              string      `json:"id"`
	AIProbability   float64     `json:"ai_probability"`
	Confidence      float64     `json:"confidence"`
	TextStats       TextStats   `json:"text_stats"`
	Interpretation  string      `json:"interpretation"`
	APIDetails      APIDetails  `json:"api_details"`
	SourceModel     SourceModel `json:"source_model"`
	ValidationScore *float64    `json:"validation_score,omitempty"`
	AnalyzedAt      time.Time   `json:"analyzed_at"`
}

// BatchItem holds the outcome for one batch input line.
// Failed items carry Error and the fixed fallback scores.
type BatchItem struct {
	Text           string          `json:"text"`
	Result         *AnalysisResult `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	AIProbability  float64         `json:"ai_probability"`
	Confidence     float64         `json:"confidence"`
	Interpretation string          `json:"interpretation"`
}

// Failed reports whether the item carries an error instead of a result
func (b BatchItem) Failed() bool {
	return b.Error != ""
}

// BatchResult is the ordered output of a batch run
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}
