package enum

import "fmt"

// AuditAction identifies a mutating action recorded in the audit log.
type AuditAction int

const (
	AuditActionLinkCreate AuditAction = iota
	AuditActionLinkUpdate
	AuditActionLinkUnlink
	AuditActionConfidenceOverride
	AuditActionCodeIssue
	AuditActionCodeRedeem
	AuditActionWhitelistGrant
	AuditActionWhitelistExtend
	AuditActionWhitelistRevoke
	AuditActionWhitelistImport
	AuditActionRoleSyncGrant
	AuditActionRoleSyncRevoke
)

var auditActionNames = map[AuditAction]string{
	AuditActionLinkCreate:         "link_create",
	AuditActionLinkUpdate:         "link_update",
	AuditActionLinkUnlink:         "link_unlink",
	AuditActionConfidenceOverride: "confidence_override",
	AuditActionCodeIssue:          "code_issue",
	AuditActionCodeRedeem:         "code_redeem",
	AuditActionWhitelistGrant:     "whitelist_grant",
	AuditActionWhitelistExtend:    "whitelist_extend",
	AuditActionWhitelistRevoke:    "whitelist_revoke",
	AuditActionWhitelistImport:    "whitelist_import",
	AuditActionRoleSyncGrant:      "role_sync_grant",
	AuditActionRoleSyncRevoke:     "role_sync_revoke",
}

// String returns the canonical name for the action.
func (a AuditAction) String() string {
	if name, ok := auditActionNames[a]; ok {
		return name
	}

	return fmt.Sprintf("AuditAction(%d)", int(a))
}
