package bot

import "github.com/disgoorg/disgo/discord"

// commands is the slash command surface registered on startup.
var commands = []discord.ApplicationCommandCreate{ //nolint:gochecknoglobals // -
	discord.SlashCommandCreate{
		Name:        "verify",
		Description: "Get a code to type in-game and verify your Steam account",
	},
	discord.SlashCommandCreate{
		Name:        "link",
		Description: "Link a Steam account to a Discord user (admin)",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionUser{
				Name:        "user",
				Description: "Discord user to link",
				Required:    true,
			},
			discord.ApplicationCommandOptionString{
				Name:        "steam_id",
				Description: "Steam ID 64 to link",
				Required:    true,
			},
			discord.ApplicationCommandOptionString{
				Name:        "eos_id",
				Description: "EOS ID to link",
			},
		},
	},
	discord.SlashCommandCreate{
		Name:        "unlink",
		Description: "Unlink a Steam account from a Discord user",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:        "steam_id",
				Description: "Steam ID 64 to unlink",
				Required:    true,
			},
			discord.ApplicationCommandOptionUser{
				Name:        "user",
				Description: "Discord user to unlink (admin, defaults to yourself)",
			},
			discord.ApplicationCommandOptionString{
				Name:        "reason",
				Description: "Why the account is being unlinked",
			},
		},
	},
	discord.SlashCommandCreate{
		Name:        "whitelist",
		Description: "Manage whitelist access",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "info",
				Description: "Show effective whitelist status for a user",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "User to inspect (defaults to yourself)",
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "grant",
				Description: "Grant whitelist access to a Steam ID (admin)",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "steam_id",
						Description: "Steam ID 64 to whitelist",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "reason",
						Description: "Grant reason",
						Required:    true,
						Choices: []discord.ApplicationCommandOptionChoiceString{
							{Name: "Donation", Value: "donation"},
							{Name: "Donator", Value: "donator"},
							{Name: "Service member", Value: "service-member"},
							{Name: "First responder", Value: "first-responder"},
							{Name: "Reporting", Value: "reporting"},
						},
					},
					discord.ApplicationCommandOptionInt{
						Name:        "duration",
						Description: "Duration value (omit for permanent)",
					},
					discord.ApplicationCommandOptionString{
						Name:        "duration_type",
						Description: "Duration unit",
						Choices: []discord.ApplicationCommandOptionChoiceString{
							{Name: "Days", Value: "days"},
							{Name: "Months", Value: "months"},
						},
					},
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "Discord user to attribute the grant to",
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "extend",
				Description: "Extend whitelist access by calendar months (admin)",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "steam_id",
						Description: "Steam ID 64 to extend",
						Required:    true,
					},
					discord.ApplicationCommandOptionInt{
						Name:        "months",
						Description: "Months to add",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "revoke",
				Description: "Revoke all active whitelist entries for a Steam ID (admin)",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "steam_id",
						Description: "Steam ID 64 to revoke",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "reason",
						Description: "Why access is being revoked",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "override",
				Description: "Upgrade a link to maximum confidence (admin)",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "Discord user whose link to upgrade",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "steam_id",
						Description: "Steam ID 64 of the link",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "reason",
						Description: "Why the override is justified",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "import",
				Description: "Import whitelisted players from a BattleMetrics flag (admin)",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "flag_id",
						Description: "BattleMetrics flag ID to import from",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "sync",
				Description: "Reconcile role-derived whitelist entries for the guild (admin)",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionBool{
						Name:        "dry_run",
						Description: "Report decisions without writing",
					},
				},
			},
		},
	},
}
