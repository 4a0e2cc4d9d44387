package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/squadhub/squadlink/internal/database/service"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"go.uber.org/zap"
)

const (
	colorSuccess = 0x57F287
	colorError   = 0xED4245
	colorInfo    = 0x5865F2
)

const commandTimeout = 30 * time.Second

// handleVerify issues a verification code for the invoking user.
func (b *Bot) handleVerify(event *events.ApplicationCommandInteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	code, err := b.db.Service().Verification().IssueCode(ctx, uint64(event.User().ID))
	if err != nil {
		b.logger.Error("Failed to issue verification code", zap.Error(err))
		b.respondError(event, "Failed to issue a verification code. Try again later.")

		return
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Verification code").
		SetDescriptionf(
			"Join the server and type `!verify %s` in in-game chat.\nThe code expires <t:%d:R>.",
			code.Code, code.ExpiresAt.Unix()).
		SetColor(colorInfo).
		Build()

	b.respond(event, embed)
}

// handleLink links a Steam account to a Discord user at admin confidence.
func (b *Bot) handleLink(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	if !b.requireAdmin(event) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	targetID := data.Snowflake("user")
	eosID, _ := data.OptString("eos_id")

	link, created, err := b.db.Service().Link().Link(ctx, service.LinkParams{
		DiscordUserID: uint64(targetID),
		SteamID:       data.String("steam_id"),
		EOSID:         eosID,
		Source:        enum.LinkSourceManualAdmin,
		ActorID:       uint64(event.User().ID),
	})
	if err != nil {
		b.respondServiceError(event, err)
		return
	}

	verb := "Updated"
	if created {
		verb = "Created"
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Account linked").
		SetDescriptionf("%s link for <@%d>.", verb, link.DiscordUserID).
		AddField("Steam ID", link.SteamID, true).
		AddField("Confidence", fmt.Sprintf("%.1f", link.Confidence), true).
		SetColor(colorSuccess).
		Build()

	b.respond(event, embed)
}

// handleUnlink removes a link. Users may unlink themselves; unlinking someone
// else requires an admin role.
func (b *Bot) handleUnlink(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	targetID := event.User().ID
	if optTarget, ok := data.OptSnowflake("user"); ok {
		targetID = optTarget
	}

	if targetID != event.User().ID && !b.requireAdmin(event) {
		return
	}

	reason, _ := data.OptString("reason")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := b.db.Service().Link().Unlink(
		ctx, uint64(targetID), data.String("steam_id"), uint64(event.User().ID), reason)
	if err != nil {
		b.respondServiceError(event, err)
		return
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Account unlinked").
		SetDescriptionf(
			"Removed the link between <@%d> and `%s`. Linking a different Steam ID is blocked for %d days.",
			targetID, data.String("steam_id"), b.cfg.Common.Link.RelinkCooldownDays).
		SetColor(colorSuccess).
		Build()

	b.respond(event, embed)
}

// handleWhitelist dispatches /whitelist subcommands.
func (b *Bot) handleWhitelist(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	subcommand := ""
	if data.SubCommandName != nil {
		subcommand = *data.SubCommandName
	}

	switch subcommand {
	case "info":
		b.handleWhitelistInfo(event, data)
	case "grant":
		b.handleWhitelistGrant(event, data)
	case "extend":
		b.handleWhitelistExtend(event, data)
	case "revoke":
		b.handleWhitelistRevoke(event, data)
	case "override":
		b.handleWhitelistOverride(event, data)
	case "import":
		b.handleWhitelistImport(event, data)
	case "sync":
		b.handleWhitelistSync(event, data)
	default:
		b.respondError(event, "Unknown subcommand.")
	}
}

// handleWhitelistInfo renders the effective whitelist status with guidance
// tailored to the deny reason.
func (b *Bot) handleWhitelistInfo(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	targetID := event.User().ID
	roleIDs := memberRoleIDs(event)

	if optTarget, ok := data.OptSnowflake("user"); ok && optTarget != event.User().ID {
		targetID = optTarget

		member, err := b.client.Rest().GetMember(snowflake.ID(b.cfg.Common.Sync.GuildID), targetID)
		if err != nil {
			b.respondError(event, "Could not fetch that member.")
			return
		}

		roleIDs = roleIDs[:0]
		for _, id := range member.RoleIDs {
			roleIDs = append(roleIDs, uint64(id))
		}
	}

	status, err := b.db.Service().Authority().GetWhitelistStatus(ctx, uint64(targetID), roleIDs)
	if err != nil {
		b.logger.Error("Failed to resolve whitelist status", zap.Error(err))
		b.respondError(event, "Failed to look up whitelist status.")

		return
	}

	builder := discord.NewEmbedBuilder().SetTitlef("Whitelist status for %s", userTag(targetID))

	if status.Whitelisted {
		builder.SetColor(colorSuccess).
			AddField("Whitelisted", "Yes", true).
			AddField("Source", status.PrimarySource.String(), true)

		if status.Database != nil && status.Database.HasWhitelist {
			builder.AddField("Details", status.Database.Status, false)
		} else if status.RoleGroup != nil {
			builder.AddField("Details", "Derived from the "+status.RoleGroup.Name+" role", false)
		}
	} else {
		builder.SetColor(colorError).AddField("Whitelisted", "No", true)

		switch status.DenyReason {
		case enum.DenyReasonNoLink:
			builder.AddField("Why", "No Steam account is linked. Use /verify to link one.", false)
		case enum.DenyReasonInsufficientConfidence:
			builder.AddField("Why", fmt.Sprintf(
				"Staff access needs a verified link (confidence %.1f, need %.1f). Use /verify to upgrade.",
				status.ActualConfidence, status.RequiredConfidence), false)
		default:
			builder.AddField("Why", "No active whitelist grant or qualifying role.", false)
		}
	}

	if status.Link != nil {
		builder.AddField("Linked Steam ID", status.Link.SteamID, true).
			AddField("Link confidence", fmt.Sprintf("%.1f", status.Link.Confidence), true)
	}

	// The extra context below is best-effort; status alone is still useful.
	links, err := b.db.Service().Link().LinksForUser(ctx, uint64(targetID))
	if err != nil {
		b.logger.Warn("Failed to load links for info view", zap.Error(err))
	} else if len(links) > 0 {
		builder.AddField("Linked accounts", formatLinks(links), false)
	}

	if status.Link != nil {
		history, err := b.db.Model().Audit().GetRecentByTarget(ctx, status.Link.SteamID, 5)
		if err != nil {
			b.logger.Warn("Failed to load recent activity", zap.Error(err))
		} else if len(history) > 0 {
			builder.AddField("Recent activity", formatAuditLines(history), false)
		}
	}

	b.respond(event, builder.Build())
}

// formatLinks renders each of a user's links with its primary marker.
func formatLinks(links []*types.PlayerLink) string {
	lines := make([]string, 0, len(links))

	for _, link := range links {
		marker := ""
		if link.IsPrimary {
			marker = " (primary)"
		}

		lines = append(lines, fmt.Sprintf("`%s`%s, %s, confidence %.1f",
			link.SteamID, marker, link.Source, link.Confidence))
	}

	return strings.Join(lines, "\n")
}

// formatAuditLines renders recent audit records, newest first.
func formatAuditLines(logs []*types.AuditLog) string {
	lines := make([]string, 0, len(logs))

	for _, entry := range logs {
		outcome := ""
		if !entry.Success {
			outcome = " (failed)"
		}

		lines = append(lines, fmt.Sprintf("<t:%d:R> %s%s", entry.CreatedAt.Unix(), entry.Action, outcome))
	}

	return strings.Join(lines, "\n")
}

// handleWhitelistGrant grants whitelist access to a Steam ID.
func (b *Bot) handleWhitelistGrant(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	if !b.requireAdmin(event) {
		return
	}

	reason, err := enum.WhitelistReasonString(data.String("reason"))
	if err != nil {
		b.respondError(event, "Unknown grant reason.")
		return
	}

	params := service.GrantParams{
		SteamID:   data.String("steam_id"),
		Reason:    reason,
		GrantedBy: uint64(event.User().ID),
	}

	if duration, ok := data.OptInt("duration"); ok {
		params.DurationValue = &duration
		params.DurationType = enum.DurationTypeDays

		if unit, ok := data.OptString("duration_type"); ok {
			params.DurationType, err = enum.DurationTypeString(unit)
			if err != nil {
				b.respondError(event, "Unknown duration unit.")
				return
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if target, ok := data.OptSnowflake("user"); ok {
		params.DiscordUserID = uint64(target)
	} else if links, lookupErr := b.db.Service().Link().LinksForSteamID(ctx, params.SteamID); lookupErr == nil {
		// No explicit grantee: attribute the grant to the Discord user
		// already holding this Steam ID as primary, when there is one.
		for _, link := range links {
			if link.IsPrimary {
				params.DiscordUserID = link.DiscordUserID
				break
			}
		}
	}

	entry, err := b.db.Service().Whitelist().Grant(ctx, params)
	if err != nil {
		b.respondServiceError(event, err)
		return
	}

	duration := "permanent"
	if expiry := entry.ExpiresAt(); expiry != nil {
		duration = fmt.Sprintf("until <t:%d:D>", expiry.Unix())
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Whitelist granted").
		SetDescriptionf("`%s` is whitelisted (%s), %s.", entry.SteamID, entry.Reason, duration).
		SetColor(colorSuccess).
		Build()

	b.respond(event, embed)
}

// handleWhitelistExtend stacks a calendar-month extension onto a Steam ID.
func (b *Bot) handleWhitelistExtend(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	if !b.requireAdmin(event) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	entry, err := b.db.Service().Whitelist().Extend(
		ctx, data.String("steam_id"), data.Int("months"), uint64(event.User().ID))
	if err != nil {
		b.respondServiceError(event, err)
		return
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Whitelist extended").
		SetDescriptionf("Added %d months for `%s`, expiring <t:%d:D>.",
			data.Int("months"), entry.SteamID, entry.ExpiresAt().Unix()).
		SetColor(colorSuccess).
		Build()

	b.respond(event, embed)
}

// handleWhitelistRevoke revokes all active entries for a Steam ID.
func (b *Bot) handleWhitelistRevoke(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	if !b.requireAdmin(event) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	count, err := b.db.Service().Whitelist().Revoke(
		ctx, data.String("steam_id"), data.String("reason"), uint64(event.User().ID))
	if err != nil {
		b.respondServiceError(event, err)
		return
	}

	description := fmt.Sprintf("Revoked %d active entries for `%s`.", count, data.String("steam_id"))
	if count == 0 {
		description = fmt.Sprintf("`%s` had no active entries; nothing to revoke.", data.String("steam_id"))
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Whitelist revoked").
		SetDescription(description).
		SetColor(colorSuccess).
		Build()

	b.respond(event, embed)
}

// handleWhitelistOverride upgrades a link to maximum confidence.
func (b *Bot) handleWhitelistOverride(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	if !b.requireAdmin(event) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := b.db.Service().Link().OverrideConfidence(
		ctx, uint64(data.Snowflake("user")), data.String("steam_id"),
		uint64(event.User().ID), data.String("reason"))
	if err != nil {
		b.respondServiceError(event, err)
		return
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Confidence overridden").
		SetDescriptionf("Link for <@%d> upgraded to maximum confidence.", data.Snowflake("user")).
		SetColor(colorSuccess).
		Build()

	b.respond(event, embed)
}

// handleWhitelistImport migrates players from a BattleMetrics flag.
func (b *Bot) handleWhitelistImport(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	if !b.requireAdmin(event) {
		return
	}

	// Imports walk paginated API results, so allow more time than usual.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := b.db.Service().Whitelist().ImportFromFlag(
		ctx, b.bmClient, data.String("flag_id"), uint64(event.User().ID))
	if err != nil {
		b.logger.Error("Failed to import from flag", zap.Error(err))
		b.respondError(event, "Import failed partway through; it is safe to re-run.")

		return
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Whitelist import complete").
		SetDescriptionf("Imported %d players, skipped %d already-covered or invalid, %d failed.",
			report.Imported, report.Skipped, report.Failed).
		SetColor(colorSuccess).
		Build()

	b.respond(event, embed)
}

// handleWhitelistSync runs a full guild reconciliation.
func (b *Bot) handleWhitelistSync(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	if !b.requireAdmin(event) {
		return
	}

	dryRun, _ := data.OptBool("dry_run")

	// Bulk sync over a large guild can take minutes with batch delays.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	members, err := b.fetchAllMembers(snowflake.ID(b.cfg.Common.Sync.GuildID))
	if err != nil {
		b.logger.Error("Failed to fetch guild members", zap.Error(err))
		b.respondError(event, "Failed to fetch guild members.")

		return
	}

	report, err := b.db.Service().Sync().BulkSync(ctx, members, service.SyncOptions{
		Source: "manual_sync",
		DryRun: dryRun,
	})
	if err != nil {
		b.logger.Error("Bulk sync failed", zap.Error(err))
		b.respondError(event, "Sync failed partway through; it is safe to re-run.")

		return
	}

	title := "Guild sync complete"
	if dryRun {
		title = "Guild sync (dry run)"
	}

	embed := discord.NewEmbedBuilder().
		SetTitle(title).
		AddField("Members", fmt.Sprintf("%d", report.Total), true).
		AddField("Granted", fmt.Sprintf("%d", report.Outcomes[enum.SyncOutcomeGranted]), true).
		AddField("Kept", fmt.Sprintf("%d", report.Outcomes[enum.SyncOutcomeKept]), true).
		AddField("Blocked", fmt.Sprintf("%d", report.Outcomes[enum.SyncOutcomeBlocked]), true).
		AddField("Revoked", fmt.Sprintf("%d", report.Revoked), true).
		AddField("Errors", fmt.Sprintf("%d", report.Errors), true).
		SetColor(colorSuccess).
		Build()

	b.respond(event, embed)
}

// requireAdmin checks the invoker holds a configured admin role and responds
// with an error when they don't.
func (b *Bot) requireAdmin(event *events.ApplicationCommandInteractionCreate) bool {
	member := event.Member()
	if member != nil {
		held := make(map[uint64]struct{}, len(member.RoleIDs))
		for _, id := range member.RoleIDs {
			held[uint64(id)] = struct{}{}
		}

		for _, adminRole := range b.cfg.Bot.Discord.AdminRoleIDs {
			if _, ok := held[adminRole]; ok {
				return true
			}
		}
	}

	b.respondError(event, "You need an admin role to use this command.")

	return false
}

// respondServiceError maps known service errors to user-facing messages.
func (b *Bot) respondServiceError(event *events.ApplicationCommandInteractionCreate, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidSteamID):
		b.respondError(event, "That doesn't look like a valid Steam ID 64.")
	case errors.Is(err, types.ErrInvalidEOSID):
		b.respondError(event, "That doesn't look like a valid EOS ID.")
	case errors.Is(err, types.ErrRelinkCooldown):
		b.respondError(event, err.Error())
	case errors.Is(err, types.ErrLinkNotFound):
		b.respondError(event, "No matching link was found.")
	case errors.Is(err, types.ErrDuplicatePrimary):
		b.respondError(event, "Another link change for that user was in flight. Try again.")
	case errors.Is(err, types.ErrReasonRequired):
		b.respondError(event, "A reason is required for this action.")
	case errors.Is(err, types.ErrInvalidDuration):
		b.respondError(event, "The duration must be a positive number.")
	default:
		b.logger.Error("Command failed", zap.Error(err))
		b.respondError(event, "Something went wrong. Try again later.")
	}
}

// respond updates the deferred interaction response with an embed.
func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, embed discord.Embed) {
	_, err := b.client.Rest().UpdateInteractionResponse(
		event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().SetEmbeds(embed).Build())
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

// respondError updates the deferred interaction response with an error embed.
func (b *Bot) respondError(event *events.ApplicationCommandInteractionCreate, message string) {
	embed := discord.NewEmbedBuilder().
		SetTitle("Error").
		SetDescription(message).
		SetColor(colorError).
		Build()

	b.respond(event, embed)
}

// memberRoleIDs extracts the invoking member's role IDs.
func memberRoleIDs(event *events.ApplicationCommandInteractionCreate) []uint64 {
	member := event.Member()
	if member == nil {
		return nil
	}

	roleIDs := make([]uint64, 0, len(member.RoleIDs))
	for _, id := range member.RoleIDs {
		roleIDs = append(roleIDs, uint64(id))
	}

	return roleIDs
}

// userTag renders a mention for embed titles, which don't resolve mentions.
func userTag(id snowflake.ID) string {
	return fmt.Sprintf("user %d", id)
}
