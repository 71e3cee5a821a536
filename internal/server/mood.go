package server

import (
	"math"

	"pawdiary/backend/internal/analysis"
)

// Per-emotion valence used for the daily trend in insights.
var valenceByEmotion = map[string]int{
	analysis.EmotionJoy:     2,
	analysis.EmotionCalm:    1,
	analysis.EmotionTired:   -1,
	analysis.EmotionAnxiety: -1,
	analysis.EmotionSadness: -2,
	analysis.EmotionAnger:   -2,
}

// Base pleasure score per emotion, scaled by intensity for the stats curve.
var pleasureBase = map[string]float64{
	analysis.EmotionJoy:     6,
	analysis.EmotionCalm:    5,
	analysis.EmotionTired:   2,
	analysis.EmotionAnxiety: 1,
	analysis.EmotionSadness: 2,
	analysis.EmotionAnger:   0,
}

var intensityWeight = map[int]float64{
	1: 1.0,
	2: 1.2,
	3: 1.5,
}

func emotionValence(emotion *string) int {
	if emotion == nil {
		return 0
	}
	return valenceByEmotion[*emotion]
}

func pleasureScore(emotion *string, intensity *int) float64 {
	base := 0.0
	if emotion != nil {
		base = pleasureBase[*emotion]
	}
	weight := 1.0
	if intensity != nil {
		if w, ok := intensityWeight[*intensity]; ok {
			weight = w
		}
	}
	return math.Round(base*weight*100) / 100
}

func meanOrNil(scores []float64) any {
	if len(scores) == 0 {
		return nil
	}
	total := 0.0
	for _, s := range scores {
		total += s
	}
	return total / float64(len(scores))
}
