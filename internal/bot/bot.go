// Package bot wires the Discord surface: slash commands for linking,
// verification, and whitelist management, plus the role-change listener that
// keeps role-derived whitelist entries current.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/squadhub/squadlink/internal/battlemetrics"
	"github.com/squadhub/squadlink/internal/database"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/setup/config"
	"go.uber.org/zap"
)

// Bot handles Discord interaction: slash commands and member update events.
type Bot struct {
	db       database.Client
	bmClient *battlemetrics.Client
	client   bot.Client
	cfg      *config.Config
	logger   *zap.Logger
}

// New initializes a Bot instance and configures the Discord client with the
// required gateway intents and event listeners.
func New(
	cfg *config.Config, db database.Client, bmClient *battlemetrics.Client, logger *zap.Logger,
) (*Bot, error) {
	b := &Bot{
		db:       db,
		bmClient: bmClient,
		cfg:      cfg,
		logger:   logger.Named("bot"),
	}

	client, err := disgo.New(cfg.Bot.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
			OnGuildMemberUpdate:             b.handleGuildMemberUpdate,
		}),
	)
	if err != nil {
		return nil, err
	}

	b.client = client

	return b, nil
}

// Start registers commands with Discord and opens the gateway connection.
// Commands go to the configured guild when one is set, so changes show up
// immediately during rollout, and globally otherwise.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	var err error
	if guildID := b.cfg.Bot.Discord.GuildID; guildID != 0 {
		_, err = b.client.Rest().SetGuildCommands(
			b.client.ApplicationID(), snowflake.ID(guildID), commands)
	} else {
		_, err = b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), commands)
	}

	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")

	return b.client.OpenGateway(ctx)
}

// Close gracefully shuts down the Discord gateway connection.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
}

// handleApplicationCommandInteraction processes slash commands. The response
// is deferred first to prevent a Discord timeout while database or API calls
// run, then each command is handled in its own goroutine.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in application command interaction handler", zap.Any("panic", r))
				b.respondError(event, "Internal error. Please report this to an administrator.")
			}

			b.logger.Debug("Application command interaction handled",
				zap.String("command", event.SlashCommandInteractionData().CommandName()),
				zap.Duration("duration", time.Since(start)))
		}()

		data := event.SlashCommandInteractionData()

		switch data.CommandName() {
		case "verify":
			b.handleVerify(event)
		case "link":
			b.handleLink(event, data)
		case "unlink":
			b.handleUnlink(event, data)
		case "whitelist":
			b.handleWhitelist(event, data)
		default:
			b.respondError(event, "This command is not available.")
		}
	}()
}

// handleGuildMemberUpdate feeds role changes into the sync service. Updates
// touching no tracked role are filtered inside the service before any
// database read.
func (b *Bot) handleGuildMemberUpdate(event *events.GuildMemberUpdate) {
	if uint64(event.GuildID) != b.cfg.Common.Sync.GuildID {
		return
	}

	added, removed := diffRoles(event.OldMember.RoleIDs, event.Member.RoleIDs)
	if len(added) == 0 && len(removed) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		roleEvent := types.RoleChangedEvent{
			GuildID:       uint64(event.GuildID),
			DiscordUserID: uint64(event.Member.User.ID),
			AddedRoles:    added,
			RemovedRoles:  removed,
		}

		member := memberRoles(event.Member)

		decision, err := b.db.Service().Sync().HandleRoleChange(ctx, roleEvent, member)
		if err != nil {
			b.logger.Error("Failed to handle role change",
				zap.Uint64("discordUserID", member.DiscordUserID),
				zap.Error(err))

			return
		}

		if decision != nil {
			b.logger.Info("Handled role change",
				zap.Uint64("discordUserID", member.DiscordUserID),
				zap.String("outcome", decision.Outcome.String()))
		}
	}()
}

// diffRoles computes role IDs present in one set but not the other.
func diffRoles(before, after []snowflake.ID) (added, removed []uint64) {
	beforeSet := make(map[snowflake.ID]struct{}, len(before))
	for _, id := range before {
		beforeSet[id] = struct{}{}
	}

	afterSet := make(map[snowflake.ID]struct{}, len(after))
	for _, id := range after {
		afterSet[id] = struct{}{}

		if _, ok := beforeSet[id]; !ok {
			added = append(added, uint64(id))
		}
	}

	for _, id := range before {
		if _, ok := afterSet[id]; !ok {
			removed = append(removed, uint64(id))
		}
	}

	return added, removed
}

// memberRoles converts a Discord member into the sync service's input shape.
func memberRoles(member discord.Member) types.MemberRoles {
	roleIDs := make([]uint64, 0, len(member.RoleIDs))
	for _, id := range member.RoleIDs {
		roleIDs = append(roleIDs, uint64(id))
	}

	return types.MemberRoles{
		DiscordUserID: uint64(member.User.ID),
		Username:      member.User.Username,
		RoleIDs:       roleIDs,
	}
}

// fetchAllMembers pages through the guild member list.
func (b *Bot) fetchAllMembers(guildID snowflake.ID) ([]types.MemberRoles, error) {
	var (
		members []types.MemberRoles
		after   snowflake.ID
	)

	for {
		page, err := b.client.Rest().GetMembers(guildID, 1000, after)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch guild members: %w", err)
		}

		if len(page) == 0 {
			break
		}

		for _, member := range page {
			members = append(members, memberRoles(member))

			if member.User.ID > after {
				after = member.User.ID
			}
		}

		if len(page) < 1000 {
			break
		}
	}

	return members, nil
}
