package verification

import (
	"time"

	"github.com/google/uuid"
)

// Definition describes a step in the static catalog
type Definition struct {
	ID           StepID
	Title        string
	Tier         Tier
	Required     bool
	DocumentType string
}

// catalog lists every verification step in display order
var catalog = []Definition{
	{ID: StepPhone, Title: "Phone number", Tier: 1, Required: true, DocumentType: "phone_otp"},
	{ID: StepEmail, Title: "Email address", Tier: 1, Required: true, DocumentType: "email_link"},
	{ID: StepIdentityDocument, Title: "National identity document", Tier: 2, Required: true, DocumentType: "national_id"},
	{ID: StepAddressProof, Title: "Proof of address", Tier: 2, Required: true, DocumentType: "utility_bill"},
	{ID: StepBackgroundCheck, Title: "Background check", Tier: 3, Required: false, DocumentType: "police_record"},
	{ID: StepProfessionalReferences, Title: "Professional references", Tier: 3, Required: false, DocumentType: "reference_letters"},
	{ID: StepCommunityValidation, Title: "Community validation", Tier: 4, Required: false, DocumentType: "community_endorsement"},
}

// Catalog returns a copy of the step catalog
func Catalog() []Definition {
	return append([]Definition(nil), catalog...)
}

// Lookup finds a catalog entry by id
func Lookup(id StepID) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// NewStep creates the pending step a user starts from
func (d Definition) NewStep(userID uuid.UUID, now time.Time) Step {
	return Step{
		UserID:       userID,
		ID:           d.ID,
		Title:        d.Title,
		Tier:         d.Tier,
		Required:     d.Required,
		DocumentType: d.DocumentType,
		Status:       StatusPending,
		UpdatedAt:    now,
	}
}

func catalogIndex(id StepID) int {
	for i, d := range catalog {
		if d.ID == id {
			return i
		}
	}
	return len(catalog)
}
