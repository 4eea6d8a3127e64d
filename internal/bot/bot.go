package bot

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"attendancebot/internal/attendance"
	"attendancebot/internal/config"
	"attendancebot/internal/db"

	"github.com/bwmarrin/discordgo"
)

type Bot struct {
	config     *config.Config
	db         *db.DB
	session    *discordgo.Session
	registry   *attendance.Registry
	router     *attendance.Router
	presenter  *presenter
	access     *access
	shutdownCh chan struct{}
	isShutdown bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// New wires the Discord session to the attendance core. database may be nil,
// in which case finalized reports are not archived.
func New(cfg *config.Config, database *db.DB) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	// Voice states and members must be cached to verify presence and roles.
	session.Identify.Intents = discordgo.IntentsAllWithoutPrivileged |
		discordgo.IntentsGuildMembers
	session.State.TrackVoice = true
	session.State.TrackMembers = true
	session.State.TrackRoles = true

	// Required permissions for visibility
	requiredPermissions := int64(
		discordgo.PermissionViewChannel |
			discordgo.PermissionSendMessages |
			discordgo.PermissionReadMessageHistory |
			discordgo.PermissionManageMessages |
			discordgo.PermissionUseSlashCommands)

	cfg.Discord.Permissions = requiredPermissions

	log.Printf("Bot intents: %d", session.Identify.Intents)
	log.Printf("Bot permissions: %d", cfg.Discord.Permissions)

	acc := &access{session: session, highRankRole: cfg.Attendance.HighRankRole}
	pres := newPresenter(session, database, newIdentityChain(session))
	registry := attendance.NewRegistry(pres, acc, acc,
		attendance.WithGraceWindow(cfg.Attendance.GraceWindow),
	)

	return &Bot{
		db:         database,
		session:    session,
		config:     cfg,
		registry:   registry,
		router:     attendance.NewRouter(registry),
		presenter:  pres,
		access:     acc,
		shutdownCh: make(chan struct{}),
		isShutdown: false,
	}, nil
}

// Helper function to register commands for a guild
func (b *Bot) registerGuildCommands(guildID string) error {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := b.registerGuildCommandsOnce(guildID)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Printf("Attempt %d to register commands failed: %v", i+1, err)
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return fmt.Errorf("failed to register commands after %d attempts: %v", maxRetries, lastErr)
}

func (b *Bot) registerGuildCommandsOnce(guildID string) error {
	serverName := getServerName(b.session, guildID)

	log.Print(formatLogMessage(guildID, "Registering commands", "BOT", serverName))

	for _, v := range commands {
		_, err := b.session.ApplicationCommandCreate(b.config.Discord.ClientID, guildID, v)
		if err != nil {
			return fmt.Errorf("error creating command %s: %w", v.Name, err)
		}
		log.Print(formatLogMessage(guildID, fmt.Sprintf("%s: Registered command", v.Name), "BOT", serverName))
	}

	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.Println("Starting AttendanceBot...")

	// Keep trying to open session until successful
	for {
		if err := b.session.Open(); err != nil {
			log.Printf("Error opening Discord session: %v. Retrying in 5 seconds...", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		log.Printf("Session opened successfully (Session ID: %s)", b.session.State.SessionID)
		break
	}

	if b.config.Discord.ClientID == "" && b.session.State.User != nil {
		b.config.Discord.ClientID = b.session.State.User.ID
	}

	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(b.handleVoiceStateUpdate)

	log.Println("Registering commands for all guilds...")
	for _, guild := range b.session.State.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			log.Printf("Error registering commands for guild %s: %v", guild.ID, err)
		}
	}

	// Now add the guild create handler for future guilds
	b.session.AddHandler(b.handleGuildCreate)

	log.Println("Bot is now running. Press CTRL-C to exit.")

	<-ctx.Done()
	return nil
}

// Shutdown performs a graceful shutdown of the bot
func (b *Bot) Shutdown() error {
	log.Println("Initiating graceful shutdown...")

	// Ensure we only close the channel once
	b.mu.Lock()
	if b.isShutdown {
		b.mu.Unlock()
		return nil
	}
	b.isShutdown = true
	close(b.shutdownCh)
	b.mu.Unlock()

	log.Println("Waiting for active handlers to complete...")
	b.wg.Wait()

	log.Println("Stopping grace period timers...")
	b.registry.Close()

	log.Print(formatLogMessage("", "Removing Discord commands", "BOT", ""))

	for _, guild := range b.session.State.Guilds {
		serverName := getServerName(b.session, guild.ID)

		registeredCommands, err := b.session.ApplicationCommands(b.config.Discord.ClientID, guild.ID)
		if err != nil {
			log.Print(formatLogMessage(guild.ID, fmt.Sprintf("Error getting commands: %v", err), "BOT", serverName))
			continue
		}
		for _, cmd := range registeredCommands {
			err := b.session.ApplicationCommandDelete(b.config.Discord.ClientID, guild.ID, cmd.ID)
			if err != nil {
				log.Print(formatLogMessage(guild.ID, fmt.Sprintf("%s: Failed to remove command (%v)", cmd.Name, err), "BOT", serverName))
			} else {
				log.Print(formatLogMessage(guild.ID, fmt.Sprintf("%s: Successfully removed command", cmd.Name), "BOT", serverName))
			}
		}
	}

	log.Println("Closing Discord session...")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("error closing Discord session: %w", err)
	}

	if b.db != nil {
		log.Println("Closing database connection...")
		b.db.Close()
	}

	log.Println("Shutdown completed successfully")
	return nil
}

// track registers a running handler; it returns false once shutdown began.
func (b *Bot) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		return false
	}
	b.wg.Add(1)
	return true
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("Bot is ready as %s! Connected to %d guilds", r.User.Username, len(r.Guilds))
}

func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log.Print(formatLogMessage(g.ID, "Bot joined guild", "BOT", g.Name))

	if err := b.registerGuildCommands(g.ID); err != nil {
		log.Print(formatLogMessage(g.ID, fmt.Sprintf("Error registering commands: %v", err), "BOT", g.Name))
	} else {
		log.Print(formatLogMessage(g.ID, "Successfully registered all commands", "BOT", g.Name))
	}
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.track() {
		return
	}
	defer b.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			log.Printf("Panic in interaction handler for user %s in guild %s:\nError: %v\nStack Trace:\n%s",
				interactionUsername(i), i.GuildID, r, string(buf[:n]))

			respondWithError(s, i, "An internal error occurred")
		}
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	commandName := i.ApplicationCommandData().Name

	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		respondWithError(s, i, fmt.Sprintf("The `/%s` command can only be used in a server", commandName))
		return
	}

	switch commandName {
	case "clockincreate":
		b.handleClockInCreate(s, i)
	case "clockinhistory":
		b.handleHistory(s, i)
	default:
		log.Print(formatLogMessage(i.GuildID, "Unknown command: "+commandName, "", ""))
		respondWithError(s, i, "Unknown command")
	}
}

// handleVoiceStateUpdate turns voice channel moves into depart/arrive signals.
func (b *Bot) handleVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil {
		return
	}
	if v.Member != nil && v.Member.User != nil && v.Member.User.Bot {
		return
	}
	if !b.track() {
		return
	}
	defer b.wg.Done()

	var before string
	if v.BeforeUpdate != nil {
		before = v.BeforeUpdate.ChannelID
	}
	departed, arrived := voiceTransition(before, v.ChannelID)

	ctx := context.Background()
	now := time.Now()
	if departed != "" {
		b.router.Depart(ctx, v.UserID, departed, now)
	}
	if arrived != "" {
		b.router.Arrive(ctx, v.UserID, arrived, now)
	}
}

// voiceTransition reports which channel was left and which was entered.
// Mute and deafen updates keep the channel and yield nothing.
func voiceTransition(before, after string) (departed, arrived string) {
	if before == after {
		return "", ""
	}
	return before, after
}
