package enum

import "fmt"

// WhitelistReason categorizes why a whitelist entry was granted.
type WhitelistReason int

const (
	WhitelistReasonServiceMember WhitelistReason = iota
	WhitelistReasonFirstResponder
	WhitelistReasonDonator
	WhitelistReasonReporting
	WhitelistReasonImport
	WhitelistReasonDonation
	WhitelistReasonStaffRole
	WhitelistReasonMemberRole
)

var whitelistReasonNames = map[WhitelistReason]string{
	WhitelistReasonServiceMember:  "service-member",
	WhitelistReasonFirstResponder: "first-responder",
	WhitelistReasonDonator:        "donator",
	WhitelistReasonReporting:      "reporting",
	WhitelistReasonImport:         "import",
	WhitelistReasonDonation:       "donation",
	WhitelistReasonStaffRole:      "staff-role",
	WhitelistReasonMemberRole:     "member-role",
}

// String returns the canonical category tag for the reason.
func (r WhitelistReason) String() string {
	if name, ok := whitelistReasonNames[r]; ok {
		return name
	}

	return fmt.Sprintf("WhitelistReason(%d)", int(r))
}

// IsRoleDerived reports whether entries with this reason exist because of a
// live Discord role and should track role membership during sync.
func (r WhitelistReason) IsRoleDerived() bool {
	return r == WhitelistReasonStaffRole || r == WhitelistReasonMemberRole
}

// WhitelistReasonString converts a canonical category tag back to a WhitelistReason.
func WhitelistReasonString(s string) (WhitelistReason, error) {
	for reason, name := range whitelistReasonNames {
		if name == s {
			return reason, nil
		}
	}

	return 0, fmt.Errorf("%s does not belong to WhitelistReason values", s) //nolint:err113
}

// DurationType is the unit a whitelist entry's duration is expressed in.
type DurationType int

const (
	DurationTypeDays DurationType = iota
	DurationTypeMonths
)

// String returns the unit name.
func (d DurationType) String() string {
	switch d {
	case DurationTypeDays:
		return "days"
	case DurationTypeMonths:
		return "months"
	default:
		return fmt.Sprintf("DurationType(%d)", int(d))
	}
}

// DurationTypeString converts a unit name back to a DurationType.
func DurationTypeString(s string) (DurationType, error) {
	switch s {
	case "days":
		return DurationTypeDays, nil
	case "months":
		return DurationTypeMonths, nil
	default:
		return 0, fmt.Errorf("%s does not belong to DurationType values", s) //nolint:err113
	}
}

// GroupTier is the access tier a tracked Discord role group maps to.
type GroupTier int

const (
	// GroupTierMember grants role-based whitelist at any link confidence.
	GroupTierMember GroupTier = iota
	// GroupTierStaff requires maximum link confidence before any grant.
	GroupTierStaff
)

// String returns the tier name.
func (t GroupTier) String() string {
	switch t {
	case GroupTierMember:
		return "member"
	case GroupTierStaff:
		return "staff"
	default:
		return fmt.Sprintf("GroupTier(%d)", int(t))
	}
}

// GroupTierString converts a tier name back to a GroupTier.
func GroupTierString(s string) (GroupTier, error) {
	switch s {
	case "member":
		return GroupTierMember, nil
	case "staff":
		return GroupTierStaff, nil
	default:
		return 0, fmt.Errorf("%s does not belong to GroupTier values", s) //nolint:err113
	}
}
