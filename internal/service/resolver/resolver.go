package resolver

import (
	"esg-sync/internal/models"
)

// Decision is the outcome of classifying one incoming external value against
// the current internal state.
type Decision string

const (
	// DecisionImport: the entity has never been synced; create it.
	DecisionImport Decision = "import"
	// DecisionUpdate: synced before, untouched by humans; overwrite.
	DecisionUpdate Decision = "update"
	// DecisionNoOp: synced before, untouched, and the value is unchanged.
	DecisionNoOp Decision = "no_op"
	// DecisionPreserve: a human edited the entity since the last sync and no
	// override was supplied; the manual value wins.
	DecisionPreserve Decision = "preserve"
	// DecisionOverride: manual edit detected but an attributable override was
	// supplied; the external value wins and the override is recorded.
	DecisionOverride Decision = "override"
)

// Resolve applies the conflict decision table. Automated sync must never
// silently clobber a human decision; an explicit, attributed override is the
// only escape hatch.
func Resolve(state *models.EntitySyncState, incomingValue string, approvedOverrideBy string) Decision {
	if state == nil {
		return DecisionImport
	}

	if !state.ManuallyEditedSinceSync() {
		if state.LastSyncedValue == incomingValue {
			return DecisionNoOp
		}
		return DecisionUpdate
	}

	if approvedOverrideBy != "" {
		return DecisionOverride
	}
	return DecisionPreserve
}
