package booking

import "strings"

// customOfferMarker flags bookings created from a pre-negotiated offer in
// the messaging flow. The host already agreed to terms, so payment alone
// confirms the booking. This is a substring heuristic on user-entered text;
// an explicit pre-negotiated flag on the aggregate would be the structural
// replacement.
const customOfferMarker = "custom offer booking"

// DecideConfirmation is the single source of truth for whether a successful
// payment auto-confirms a booking or leaves it pending host approval. Every
// payment-completion path must consult this function rather than inlining
// the check.
func DecideConfirmation(activityDescription string) bool {
	return strings.Contains(strings.ToLower(activityDescription), customOfferMarker)
}
