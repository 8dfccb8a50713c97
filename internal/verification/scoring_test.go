package verification

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// stepsWithApproved builds the full catalog for one user with the given steps approved
func stepsWithApproved(approved ...StepID) []Step {
	user := uuid.New()
	set := make(map[StepID]bool, len(approved))
	for _, id := range approved {
		set[id] = true
	}
	var steps []Step
	for _, def := range Catalog() {
		s := def.NewStep(user, fixedNow)
		if set[def.ID] {
			s.Status = StatusApproved
		}
		steps = append(steps, s)
	}
	return steps
}

func TestComputeEmpty(t *testing.T) {
	assert.Equal(t, Score{TrustScore: 0, Tier: TierBasic}, Compute(nil))
	assert.Equal(t, Score{TrustScore: 0, Tier: TierBasic}, Compute(stepsWithApproved()))
}

func TestComputeScenario(t *testing.T) {
	score := Compute(stepsWithApproved(StepPhone, StepEmail, StepIdentityDocument))
	assert.Equal(t, 65, score.TrustScore)
	assert.Equal(t, TierGovernment, score.Tier)

	score = Compute(stepsWithApproved(StepPhone, StepEmail, StepIdentityDocument, StepBackgroundCheck))
	assert.Equal(t, 95, score.TrustScore)
	assert.Equal(t, TierCommunity, score.Tier)
}

func TestComputeSaturatesAt100(t *testing.T) {
	var all []StepID
	for _, def := range Catalog() {
		all = append(all, def.ID)
	}
	assert.Equal(t, Score{TrustScore: 100, Tier: TierCommunity}, Compute(stepsWithApproved(all...)))
}

func TestComputeIgnoresRejectedAndDuplicates(t *testing.T) {
	steps := stepsWithApproved(StepPhone)
	steps = append(steps, steps[0], steps[0])
	assert.Equal(t, 20, Compute(steps).TrustScore)

	rejected := stepsWithApproved()
	rejected[2].Status = StatusRejected
	rejected[3].Status = StatusSubmitted
	assert.Equal(t, 0, Compute(rejected).TrustScore)
}

func TestComputeIsOrderIndependent(t *testing.T) {
	steps := stepsWithApproved(StepPhone, StepAddressProof, StepProfessionalReferences, StepCommunityValidation)
	want := Compute(steps)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]Step(nil), steps...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Compute(shuffled))
	}
}

func TestComputeIsMonotonic(t *testing.T) {
	defs := Catalog()
	for mask := 0; mask < 1<<len(defs); mask++ {
		var approved []StepID
		for i, def := range defs {
			if mask&(1<<i) != 0 {
				approved = append(approved, def.ID)
			}
		}
		base := Compute(stepsWithApproved(approved...))
		assert.GreaterOrEqual(t, base.TrustScore, 0)
		assert.LessOrEqual(t, base.TrustScore, 100)

		for i, def := range defs {
			if mask&(1<<i) != 0 {
				continue
			}
			more := Compute(stepsWithApproved(append(append([]StepID(nil), approved...), def.ID)...))
			assert.GreaterOrEqual(t, more.TrustScore, base.TrustScore, "approving %s lowered the score", def.ID)
		}
	}
}

func TestTierForScore(t *testing.T) {
	tests := []struct {
		score int
		want  VerificationTier
	}{
		{0, TierBasic},
		{39, TierBasic},
		{40, TierGovernment},
		{69, TierGovernment},
		{70, TierEnhanced},
		{89, TierEnhanced},
		{90, TierCommunity},
		{100, TierCommunity},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierForScore(tt.score), "score %d", tt.score)
	}
}
