package scoring

const (
	Formula     = "Final Score = sum(avg(section_score) / 2 * section_weight) * 100"
	Explanation = "The final score was computed by taking the average score of each section, normalizing it to a 0–1 range, weighting it by importance, and scaling to 100."
)

// FinalScoreResult is the aggregated score with its inputs.
type FinalScoreResult struct {
	SectionScores  map[Section]float64 `json:"section_scores"`
	SectionWeights SectionWeights      `json:"section_weights"`
	FinalScore     float64             `json:"final_score"`
	Formula        string              `json:"formula"`
	Explanation    string              `json:"explanation"`
}

// Aggregate computes the final score. Each section contributes its subfield
// average divided by 2 times its weight; the sum is scaled to 100, rounded to
// 2 decimals and clamped to [0,100]. Missing sections and subfields count as 0.
func Aggregate(weights SectionWeights, scores map[Section]SectionScore) FinalScoreResult {
	res := FinalScoreResult{
		SectionScores:  make(map[Section]float64, len(Sections)),
		SectionWeights: weights.clone(),
		Formula:        Formula,
		Explanation:    Explanation,
	}

	var total float64
	for _, s := range Sections {
		avg := sectionAverage(s, scores)
		res.SectionScores[s] = round(avg, 2)
		total += avg / 2 * weights[s]
	}

	final := round(total*100, 2)
	switch {
	case final > 100:
		final = 100
	case final < 0:
		final = 0
	}
	res.FinalScore = final
	return res
}

func sectionAverage(s Section, scores map[Section]SectionScore) float64 {
	sc, ok := scores[s]
	if !ok {
		return 0
	}
	names := subfields[s]
	var sum int
	for _, name := range names {
		sum += sc.Subfields[name]
	}
	return float64(sum) / float64(len(names))
}
