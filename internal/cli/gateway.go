package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/bus"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/channel/telegram"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/channel/vk"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/channel/wasender"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/chatwoot"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/config"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/gateway"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/ingest"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/reconcile"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/routing"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/store"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the bridge gateway server",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			// Helpdesk client and reconciliation core.
			cw := chatwoot.New(cfg.Chatwoot.BaseURL, cfg.Chatwoot.AccountID, cfg.Chatwoot.APIAccessToken)
			svc := reconcile.NewService(cw, log)

			// Channel senders, one per configured section.
			senders := map[string]domain.Sender{}
			var vkSender *vk.Sender
			if cfg.Wasender != nil {
				senders[domain.ChannelWhatsApp] = wasender.New(cfg.Wasender.APIBase, cfg.Wasender.APIKey, cfg.Wasender.InboxID)
			}
			if cfg.Telegram != nil {
				senders[domain.ChannelTelegram] = telegram.New(cfg.Telegram.BridgeURL, cfg.Telegram.BridgeToken, cfg.Telegram.InboxID)
			}
			if cfg.VK != nil {
				vkSender = vk.New("", cfg.VK.AccessToken, cfg.VK.APIVersion, cfg.VK.InboxID)
				senders[domain.ChannelVK] = vkSender
			}
			channels := make([]string, 0, len(senders))
			for tag := range senders {
				channels = append(channels, tag)
			}
			log.Info().Strs("channels", channels).Msg("channel senders configured")

			b := bus.New(256, log)
			router := routing.New(senders, cfg.Chatwoot.BaseURL, b, log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Failure journal for dropped inbound events.
			db, err := store.Open(paths.JournalPath(&cfg), log)
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
			defer db.Close()
			journal := store.NewJournal(db)
			retention := time.Duration(cfg.Journal.RetentionHours) * time.Hour
			if removed, err := journal.Prune(ctx, retention); err != nil {
				log.Warn().Err(err).Msg("journal prune failed")
			} else if removed > 0 {
				log.Info().Int64("removed", removed).Msg("journal pruned")
			}

			var profiles ingest.ProfileFetcher
			if vkSender != nil {
				profiles = vkSender
			}
			pipeline := ingest.New(svc, router, cfg.InboxIDByChannel(), profiles, journal, log)
			pipeline.Register(b)

			go b.Run(ctx)
			defer b.Close()

			srv := gateway.New(&cfg, b, router, log)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override gateway bind (loopback, lan)")
	return cmd
}
