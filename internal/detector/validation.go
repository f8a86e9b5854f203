package detector

import (
	"math"

	"github.com/zombar/aidetector/internal/models"
)

// ValidationScore estimates how reliable a result is from the remote
// confidence and the local text statistics. The result is in [0,100].
func ValidationScore(confidence float64, stats models.TextStats) float64 {
	lengthScore := math.Min(100, float64(stats.Words)*2)
	diversityScore := stats.LexicalDiversity * 100
	pronounScore := math.Min(100, float64(stats.PersonalPronouns)*20)

	return math.Round(0.4*confidence + 0.2*lengthScore + 0.2*diversityScore + 0.2*pronounScore)
}
