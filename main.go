package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"community-bot/bot"
	"community-bot/config"
	"community-bot/events"
	"community-bot/handlers"
	"community-bot/lang"
	"community-bot/storage"
	"community-bot/transcript"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to config file")
	cleanup := flag.Bool("cleanup", false, "Remove slash commands on shutdown")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Discord.Token == "" || cfg.Discord.Token == "YOUR_DISCORD_BOT_TOKEN_HERE" {
		log.Fatal("Set your bot token in config.json → discord.token")
	}

	storage.Cfg = cfg
	lang.Load(cfg.Lang)

	if err := storage.InitDB(&cfg.Database); err != nil {
		log.Fatalf("Failed to initialise database: %v", err)
	}
	defer storage.DB.Close()

	handlers.Transcripts = &transcript.Store{Dir: cfg.Tickets.TranscriptDir}

	if cfg.Events.Enabled {
		pub, err := events.Dial(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			log.Printf("WARNING: Event publisher unavailable: %v (lifecycle events will only be logged)", err)
		} else {
			handlers.Events = pub
			defer pub.Close()
		}
	}

	b, err := bot.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	handlers.Register(b.Session)
	handlers.RegisterWelcome(b.Session)

	if err := b.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}
	defer b.Stop()

	registered := b.RegisterCommands(handlers.Commands(cfg))

	stopWorkers := make(chan struct{})
	handlers.StartGiveawayScanner(b.Session, stopWorkers)
	handlers.StartPresenceRotator(b.Session, cfg.Discord.GuildID, stopWorkers)

	log.Println("Bot is running. Press Ctrl+C to exit.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	close(stopWorkers)
	if *cleanup {
		b.CleanupCommands(registered)
	}
}
