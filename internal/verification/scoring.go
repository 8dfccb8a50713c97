package verification

const maxTrustScore = 100

var tierWeights = map[Tier]int{
	1: 20,
	2: 25,
	3: 30,
	4: 40,
}

// Score is the result of Compute
type Score struct {
	TrustScore int              `json:"trust_score"`
	Tier       VerificationTier `json:"verification_tier"`
}

// Compute derives the trust score from the approved steps. Each approved step
// id counts once with its tier weight and the sum saturates at 100, so the
// result depends only on the set of approved ids.
func Compute(steps []Step) Score {
	weights := make(map[StepID]int)
	for _, s := range steps {
		if s.Status != StatusApproved {
			continue
		}
		if w := tierWeights[s.Tier]; w > weights[s.ID] {
			weights[s.ID] = w
		}
	}

	total := 0
	for _, w := range weights {
		total += w
	}
	if total > maxTrustScore {
		total = maxTrustScore
	}
	if total < 0 {
		total = 0
	}
	return Score{TrustScore: total, Tier: TierForScore(total)}
}

// TierForScore bands a trust score
func TierForScore(score int) VerificationTier {
	switch {
	case score >= 90:
		return TierCommunity
	case score >= 70:
		return TierEnhanced
	case score >= 40:
		return TierGovernment
	default:
		return TierBasic
	}
}
