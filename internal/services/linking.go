package services

import "homelet/api/internal/models"

// LinkDecision is the outcome of applying an accepted invite to a rental.
type LinkDecision int

const (
	// LinkNoChangeOwner: the redeemer owns the property and never becomes its borrower.
	LinkNoChangeOwner LinkDecision = iota
	// LinkNoChangeBorrower: the redeemer already is the borrower.
	LinkNoChangeBorrower
	// LinkSetBorrower: the redeemer becomes the borrower.
	LinkSetBorrower
	// LinkReplaceBorrower: the redeemer replaces a different borrower.
	LinkReplaceBorrower
)

func (d LinkDecision) String() string {
	switch d {
	case LinkNoChangeOwner:
		return "no_change_owner"
	case LinkNoChangeBorrower:
		return "no_change_borrower"
	case LinkSetBorrower:
		return "set_borrower"
	case LinkReplaceBorrower:
		return "replace_borrower"
	default:
		return "unknown"
	}
}

// Mutates reports whether the decision writes the borrower slot.
func (d LinkDecision) Mutates() bool {
	return d == LinkSetBorrower || d == LinkReplaceBorrower
}

// DecideLink applies the rental linking rules. The most recent accepted
// invite wins, so an existing different borrower is overwritten.
func DecideLink(rental *models.Rental, ownerID, redeemerID int64) LinkDecision {
	switch {
	case redeemerID == ownerID:
		return LinkNoChangeOwner
	case rental.HasBorrower(redeemerID):
		return LinkNoChangeBorrower
	case rental.BorrowerID != nil:
		return LinkReplaceBorrower
	default:
		return LinkSetBorrower
	}
}
