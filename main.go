package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/guildworks/tradewinds/tradewinds"
	"github.com/guildworks/tradewinds/tradewinds/commands"
	"github.com/guildworks/tradewinds/tradewinds/database"
	"github.com/guildworks/tradewinds/tradewinds/database/repositories"
	"github.com/guildworks/tradewinds/tradewinds/economy"
	ecoevents "github.com/guildworks/tradewinds/tradewinds/economy/events"
	"github.com/guildworks/tradewinds/tradewinds/handlers"
	"github.com/guildworks/tradewinds/tradewinds/jobs"
	"github.com/guildworks/tradewinds/tradewinds/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler()))

	slog.Info("Starting Tradewinds",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := tradewinds.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	dbStart := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Database connection failed",
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(dbStart)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStart)))

	b := tradewinds.New(*cfg, version, commit)
	b.DB = db

	eco := cfg.Economy
	engineCfg := economy.Config{
		StartingTreasury:  eco.StartingTreasury,
		TreasuryCap:       eco.TreasuryCap,
		AllowNegative:     eco.AllowNegative,
		Fluctuation:       eco.FluctuationRange,
		MinTickElapsed:    time.Duration(eco.TickMinutes) * time.Minute,
		PassiveInterval:   time.Duration(eco.PassiveMinutes) * time.Minute,
		PassiveRate:       eco.PassiveMemberRate,
		PassiveMemberCap:  eco.PassiveMemberCap,
		StartingBalance:   eco.StartingBalance,
		WorkMinReward:     eco.WorkMinReward,
		WorkMaxReward:     eco.WorkMaxReward,
		WorkCooldown:      time.Duration(eco.WorkCooldownHours) * time.Hour,
		DailyReward:       eco.DailyReward,
		DailyCooldown:     24 * time.Hour,
		InfluenceCooldown: time.Duration(eco.InfluenceCooldownH) * time.Hour,
		TaxRate:           eco.TaxRate,
		TransferFee:       eco.TransferFee,
		WealthTaxRate:     eco.WealthTaxRate,
		HistoryRetention:  eco.HistoryRetention,
	}
	limits := engineCfg.Limits()

	bunDB := db.BunDB()
	treasuryRepo := repositories.NewEconomyRepository(bunDB, limits)
	modifierRepo := repositories.NewModifierRepository(bunDB)
	walletRepo := repositories.NewWalletRepository(bunDB, limits, eco.StartingBalance)
	eventRepo := repositories.NewEventRepository(bunDB)
	txRepo := repositories.NewTransactionRepository(bunDB)

	b.Engine = economy.NewEngine(economy.Deps{
		Treasury:     treasuryRepo,
		Modifiers:    modifierRepo,
		Wallets:      walletRepo,
		Transactions: txRepo,
	}, engineCfg)

	eventCfg := ecoevents.DefaultConfig()
	eventCfg.MinGap = time.Duration(eco.EventMinHours) * time.Hour
	eventCfg.MaxGap = time.Duration(eco.EventMaxHours) * time.Hour
	eventCfg.VotingWindow = time.Duration(eco.EventVotingMinutes) * time.Minute
	b.Events = ecoevents.New(ecoevents.Deps{
		Store:    eventRepo,
		Treasury: treasuryRepo,
		Core:     b.Engine,
	}, eventCfg)

	h := handler.New()
	h.Command("/treasury", handlers.WrapWithLogging("treasury", commands.TreasuryHandler(b)))
	h.Command("/history", handlers.WrapWithLogging("history", commands.HistoryHandler(b)))
	h.Command("/forecast", handlers.WrapWithLogging("forecast", commands.ForecastHandler(b)))
	h.Command("/donate", handlers.WrapWithLogging("donate", commands.DonateHandler(b)))
	h.Command("/policy/view", handlers.WrapWithLogging("policy-view", commands.PolicyViewHandler(b)))
	h.Command("/policy/set", handlers.WrapWithLogging("policy-set", commands.PolicySetHandler(b)))
	h.Command("/balance", handlers.WrapWithLogging("balance", commands.BalanceHandler(b)))
	h.Command("/work", handlers.WrapWithLogging("work", commands.WorkHandler(b)))
	h.Command("/daily", handlers.WrapWithLogging("daily", commands.DailyHandler(b)))
	h.Command("/transfer", handlers.WrapWithLogging("transfer", commands.TransferHandler(b)))
	h.Command("/leaderboard", handlers.WrapWithLogging("leaderboard", commands.LeaderboardHandler(b)))
	h.Command("/influence", handlers.WrapWithLogging("influence", commands.InfluenceHandler(b)))
	h.Command("/event/info", handlers.WrapWithLogging("event-info", commands.EventInfoHandler(b)))
	h.Command("/event/vote", handlers.WrapWithLogging("event-vote", commands.EventVoteHandler(b)))
	h.Command("/event/trigger", handlers.WrapWithLogging("event-trigger", commands.EventTriggerHandler(b)))
	h.Command("/event/recent", handlers.WrapWithLogging("event-recent", commands.EventRecentHandler(b)))
	h.Command("/grant", handlers.WrapWithLogging("grant", commands.GrantHandler(b)))
	h.Command("/spend", handlers.WrapWithLogging("spend", commands.SpendHandler(b)))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}

	gwCtx, gwCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gwCancel()
	if err = b.Client.OpenGateway(gwCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	scheduler := jobs.NewScheduler(b.Engine, b.Events)
	if err := scheduler.Start(eco.TickMinutes, eco.PassiveMinutes, b); err != nil {
		slog.Error("Failed to start scheduler",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}
	defer scheduler.Stop()

	slog.Info("Tradewinds is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down...")
}
