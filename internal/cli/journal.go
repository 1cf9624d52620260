package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/config"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/store"
)

func newJournalCmd() *cobra.Command {
	var (
		channel string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent ingestion failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			db, err := store.Open(paths.JournalPath(&cfg), log)
			if err != nil {
				return err
			}
			defer db.Close()

			failures, err := store.NewJournal(db).Recent(cmd.Context(), channel, limit)
			if err != nil {
				return err
			}

			if len(failures) == 0 {
				fmt.Println("no ingestion failures recorded")
				return nil
			}

			for _, f := range failures {
				fmt.Printf("%s  [%s] %s: %s\n",
					f.CreatedAt.Format("2006-01-02 15:04:05"), f.Channel, f.Topic, f.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "filter by channel (whatsapp, telegram, vk)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries to show")

	return cmd
}
