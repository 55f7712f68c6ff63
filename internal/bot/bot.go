package bot

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"standupbot/internal/config"
	"standupbot/internal/dsm"
	"standupbot/internal/store"

	"github.com/bwmarrin/discordgo"
)

type Bot struct {
	config     *config.Config
	store      store.Store
	manager    *dsm.Manager
	session    *discordgo.Session
	scheduler  *Scheduler
	shutdownCh chan struct{}
	isShutdown bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

func New(config *config.Config, st store.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + config.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	requiredPermissions := int64(
		discordgo.PermissionViewChannel |
			discordgo.PermissionSendMessages |
			discordgo.PermissionSendMessagesInThreads |
			discordgo.PermissionCreatePublicThreads |
			discordgo.PermissionReadMessageHistory |
			discordgo.PermissionUseSlashCommands)

	config.Discord.Permissions = requiredPermissions

	log.Printf("Bot intents: %d", session.Identify.Intents)
	log.Printf("Bot permissions: %d", config.Discord.Permissions)

	manager := dsm.NewManager(st, NewMessenger(session), dsm.DiscordLimits)

	b := &Bot{
		config:     config,
		store:      st,
		manager:    manager,
		session:    session,
		shutdownCh: make(chan struct{}),
	}
	b.scheduler = NewScheduler(b)
	return b, nil
}

// Manager exposes the session lifecycle manager, mainly for the scheduler.
func (b *Bot) Manager() *dsm.Manager { return b.manager }

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

	log.Printf(formatLogMessage(guildID, "Registering commands", "BOT", serverName))

	existing, err := b.session.ApplicationCommands(b.config.Discord.ClientID, guildID)
	if err != nil {
		return fmt.Errorf("error getting existing commands: %w", err)
	}

	for _, v := range existing {
		err := b.session.ApplicationCommandDelete(b.config.Discord.ClientID, guildID, v.ID)
		if err != nil {
			log.Printf(formatLogMessage(guildID, fmt.Sprintf("%s: Failed to delete command (%v)", v.Name, err), "BOT", serverName))
		}
	}

	for _, v := range commands {
		_, err := b.session.ApplicationCommandCreate(b.config.Discord.ClientID, guildID, v)
		if err != nil {
			return fmt.Errorf("error creating command %s: %w", v.Name, err)
		}
		log.Printf(formatLogMessage(guildID, fmt.Sprintf("%s: Registered command", v.Name), "BOT", serverName))
	}

	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.Println("Starting StandupBot...")

	// Keep trying to connect until successful
	for {
		log.Println("Testing Discord API connection...")
		if _, err := b.session.User("@me"); err != nil {
			log.Printf("Failed to connect to Discord API: %v. Retrying in 5 seconds...", err)
			time.Sleep(5 * time.Second)
			continue
		}
		log.Println("Successfully connected to Discord API")
		break
	}

	for {
		if err := b.session.Open(); err != nil {
			log.Printf("Error opening Discord session: %v. Retrying in 5 seconds...", err)
			time.Sleep(5 * time.Second)
			continue
		}
		log.Printf("Session opened successfully (Session ID: %s)", b.session.State.SessionID)
		break
	}

	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type == discordgo.InteractionApplicationCommand {
			b.handleCommand(s, i)
		}
	})

	log.Println("Re-registering commands for all guilds...")
	for _, guild := range b.session.State.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			log.Printf("Error registering commands for guild %s: %v", guild.ID, err)
		}
	}

	b.session.AddHandler(b.handleGuildCreate)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.scheduler.Run(ctx)
	}()

	log.Println("Bot is now running. Press CTRL-C to exit.")

	<-ctx.Done()
	return b.Shutdown()
}

// Shutdown performs a graceful shutdown of the bot
func (b *Bot) Shutdown() error {
	log.Println("Initiating graceful shutdown...")

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

	log.Println("Closing Discord session...")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("error closing Discord session: %w", err)
	}

	log.Println("Shutdown completed successfully")
	return nil
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("Bot is ready! Connected to %d guilds", len(r.Guilds))

	// Make sure every guild has a stored configuration
	for _, guild := range r.Guilds {
		if _, err := b.manager.Config(context.Background(), guild.ID); err != nil {
			log.Printf("Error initializing config for guild %s: %v", guild.ID, err)
		}
	}
}

func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log.Printf(formatLogMessage(g.ID, "Bot joined new guild", "BOT", g.Name))

	if _, err := b.manager.Config(context.Background(), g.ID); err != nil {
		log.Printf(formatLogMessage(g.ID, fmt.Sprintf("Error initializing config: %v", err), "BOT", g.Name))
	}

	if err := b.registerGuildCommands(g.ID); err != nil {
		log.Printf(formatLogMessage(g.ID, fmt.Sprintf("Error registering commands: %v", err), "BOT", g.Name))
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	// Catch panics with a stack trace so one bad command cannot take the
	// whole bot down.
	defer func() {
		if r := recover(); r != nil {
			var username string
			if i.Member != nil && i.Member.User != nil {
				username = i.Member.User.Username
			} else {
				username = "unknown"
			}

			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			log.Printf("Panic in command handler for user %s in guild %s:\nError: %v\nStack Trace:\n%s",
				username, i.GuildID, r, string(buf[:n]))

			respondWithError(s, i, "An internal error occurred")
		}
	}()

	commandName := i.ApplicationCommandData().Name

	if i.GuildID == "" {
		respondWithError(s, i, fmt.Sprintf("The `/%s` command can only be used in a server", commandName))
		return
	}

	b.wg.Add(1)
	defer b.wg.Done()

	switch commandName {
	case "add":
		b.handleAdd(s, i)
	case "done":
		b.handleDone(s, i)
	case "remark":
		b.handleRemark(s, i)
	case "refresh":
		b.handleRefresh(s, i)
	case "standup":
		b.handleStandup(s, i)
	case "finalize":
		b.handleFinalize(s, i)
	case "skipdate":
		b.handleSkipDate(s, i)
	case "unskipdate":
		b.handleUnskipDate(s, i)
	case "skipped":
		b.handleSkipped(s, i)
	case "lookback":
		b.handleLookback(s, i)
	case "config":
		b.handleConfig(s, i)
	default:
		log.Printf(formatLogMessage(i.GuildID, "Unknown command: "+commandName, "", ""))
		respondWithError(s, i, "Unknown command")
	}
}
