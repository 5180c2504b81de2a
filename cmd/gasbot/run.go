package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Fechomap/cargas-gas-sub000/internal/bot"
	"github.com/Fechomap/cargas-gas-sub000/internal/bot/discord"
	"github.com/Fechomap/cargas-gas-sub000/internal/config"
	"github.com/Fechomap/cargas-gas-sub000/internal/dashboard"
	"github.com/Fechomap/cargas-gas-sub000/internal/db"
	"github.com/Fechomap/cargas-gas-sub000/internal/kilometer"
	"github.com/Fechomap/cargas-gas-sub000/internal/models"
	"github.com/Fechomap/cargas-gas-sub000/internal/notify"
	"github.com/Fechomap/cargas-gas-sub000/internal/reminder"
	"github.com/Fechomap/cargas-gas-sub000/internal/store"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var withDashboard bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the chat bot daemon",
		Long:  "Connects to Discord and MySQL, starts the capture reminders and serves conversations until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, configPath, withDashboard)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gasbot.yaml", "path to config file")
	cmd.Flags().BoolVar(&withDashboard, "dashboard", false, "also serve the HTTP dashboard")
	return cmd
}

func runDaemon(cmd *cobra.Command, configPath string, withDashboard bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
	if err != nil {
		return err
	}
	st, err := store.NewGormStore(gormDB)
	if err != nil {
		return err
	}
	validator, err := kilometer.New(kilometer.Opts{
		Source:                 st,
		HighIncrementThreshold: cfg.Validation.HighIncrementThreshold,
	})
	if err != nil {
		return err
	}

	adapter, err := discord.New(discord.AdapterOpts{BotToken: cfg.Discord.BotToken})
	if err != nil {
		return err
	}

	sessions := bot.NewSessionStore()
	dispatcher, err := bot.NewDispatcher(bot.DispatcherOpts{
		Sessions: sessions,
		Adapter:  adapter,
		Out:      out,
	})
	if err != nil {
		return err
	}

	var notifier bot.SummaryNotifier
	if cfg.Slack.WebhookURL != "" {
		notifier, err = notify.NewSlackNotifier(notify.SlackNotifierOpts{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
		})
		if err != nil {
			return err
		}
	}

	batch, err := bot.NewBatchEngine(dispatcher, bot.BatchEngineOpts{
		Sessions:  sessions,
		Store:     st,
		Validator: validator,
		Adapter:   adapter,
		Notifier:  notifier,
		Out:       out,
	})
	if err != nil {
		return err
	}
	fuel, err := bot.NewFuelFlow(dispatcher, bot.FuelFlowOpts{
		Sessions:  sessions,
		Store:     st,
		Validator: validator,
		Adapter:   adapter,
		Out:       out,
	})
	if err != nil {
		return err
	}
	edit, err := bot.NewEditFlow(dispatcher, bot.EditFlowOpts{
		Sessions:  sessions,
		Store:     st,
		Validator: validator,
		Adapter:   adapter,
		Out:       out,
	})
	if err != nil {
		return err
	}
	bot.RegisterCommands(dispatcher, batch, fuel, edit)

	// Channel routing uses the tenant IDs assigned at seed time, so resolve
	// every configured tenant against the database.
	tenants := bot.StaticTenants{}
	var targets []reminder.Target
	for _, tc := range cfg.Tenants {
		var row models.Tenant
		if err := gormDB.Where("name = ?", tc.Name).First(&row).Error; err != nil {
			return fmt.Errorf("tenant %q not found, run `gasbot db init` first: %w", tc.Name, err)
		}
		channel := tc.ChannelID
		if channel == "" {
			channel = cfg.Discord.ChannelID
		}
		tenants[channel] = row.ID
		targets = append(targets, reminder.Target{Name: tc.Name, ChannelID: channel})
	}

	daemon, err := bot.NewDaemon(bot.DaemonOpts{
		Adapter:    adapter,
		Dispatcher: dispatcher,
		Tenants:    tenants,
		Out:        out,
	})
	if err != nil {
		return err
	}

	scheduler, err := reminder.New(reminder.SchedulerOpts{
		Adapter:        adapter,
		Targets:        targets,
		ShiftStartCron: cfg.Reminders.ShiftStartCron,
		ShiftEndCron:   cfg.Reminders.ShiftEndCron,
		Out:            out,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start()
	defer scheduler.Stop()

	if withDashboard {
		go func() {
			if err := dashboard.Start(ctx, dashboard.StartOpts{
				DB:   gormDB,
				Port: cfg.Dashboard.Port,
				Out:  out,
			}); err != nil {
				fmt.Fprintf(out, "dashboard stopped: %v\n", err)
			}
		}()
	}

	fmt.Fprintf(out, "gasbot running [tenants=%d]\n", len(cfg.Tenants))
	return daemon.Run(ctx)
}
