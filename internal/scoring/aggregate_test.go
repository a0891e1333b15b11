package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(s Section, v int) SectionScore {
	sc := SectionScore{Subfields: map[string]int{}}
	for _, name := range subfields[s] {
		sc.Subfields[name] = v
	}
	return sc
}

func TestAggregateWeightedSections(t *testing.T) {
	weights := weightsOf(map[Section]float64{
		SectionExperience:     0.4,
		SectionSkills:         0.25,
		SectionEducation:      0.1,
		SectionProjects:       0.1,
		SectionCertifications: 0.15,
	})
	scores := map[Section]SectionScore{
		SectionExperience: uniform(SectionExperience, 2),
		SectionSkills:     uniform(SectionSkills, 2),
		SectionEducation:  uniform(SectionEducation, 0),
	}

	res := Aggregate(weights, scores)

	assert.Equal(t, 65.0, res.FinalScore)
	assert.Equal(t, 2.0, res.SectionScores[SectionExperience])
	assert.Equal(t, 0.0, res.SectionScores[SectionProjects], "missing sections contribute 0")
	assert.Len(t, res.SectionScores, len(Sections))
	assert.Equal(t, Formula, res.Formula)
	assert.Equal(t, Explanation, res.Explanation)
}

func TestAggregateRoundsSectionAverages(t *testing.T) {
	weights := weightsOf(map[Section]float64{SectionSkills: 1})
	scores := map[Section]SectionScore{
		SectionSkills: {Subfields: map[string]int{"alignment": 2, "coverage": 1, "proficiency": 1}},
	}

	res := Aggregate(weights, scores)

	assert.Equal(t, 1.33, res.SectionScores[SectionSkills])
	assert.Equal(t, 66.67, res.FinalScore)
}

func TestAggregateMissingSubfieldsCountAsZero(t *testing.T) {
	weights := weightsOf(map[Section]float64{SectionExperience: 1})
	scores := map[Section]SectionScore{
		SectionExperience: {Subfields: map[string]int{YearsVsExpectation: 2, "relevancy": 2}},
	}

	res := Aggregate(weights, scores)

	assert.Equal(t, 0.8, res.SectionScores[SectionExperience])
	assert.Equal(t, 40.0, res.FinalScore)
}

func TestAggregateClamps(t *testing.T) {
	weights := make(SectionWeights)
	scores := map[Section]SectionScore{}
	for _, s := range Sections {
		weights[s] = 0.2
		scores[s] = uniform(s, 2)
	}

	res := Aggregate(weights, scores)
	assert.Equal(t, 100.0, res.FinalScore)

	weights[SectionSkills] = -5
	for _, s := range Sections {
		if s != SectionSkills {
			weights[s] = 0
		}
	}
	res = Aggregate(weights, scores)
	assert.Equal(t, 0.0, res.FinalScore)
}

func TestAggregateIsReproducible(t *testing.T) {
	weights := weightsOf(map[Section]float64{SectionExperience: 0.375, SectionEducation: 0.125, SectionSkills: 0.4, SectionLeadership: 0.1})
	scores := map[Section]SectionScore{
		SectionExperience: uniform(SectionExperience, 2),
		SectionEducation:  {Subfields: map[string]int{"alignment": 2, "level": 1, "institution_reputation": 1}},
		SectionSkills:     {Subfields: map[string]int{"alignment": 2, "coverage": 2, "proficiency": 1}},
	}

	first, err := json.Marshal(Aggregate(weights, scores))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(Aggregate(weights, scores))
		require.NoError(t, err)
		require.Equal(t, string(first), string(again))
	}

	assert.Equal(t, 79.17, Aggregate(weights, scores).FinalScore)
}
