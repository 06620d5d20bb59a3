// Package cli wires the terminal front-end: login/logout, room listing and
// the interactive chat loop.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/itzBaowy/ecms-livechat/pkg/config"
	"github.com/itzBaowy/ecms-livechat/pkg/logging"
	"github.com/itzBaowy/ecms-livechat/pkg/session"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
	store   session.Store
)

var rootCmd = &cobra.Command{
	Use:   "livechat",
	Short: "Live chat client for the maintenance service platform",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(logging.LevelInfo)

		loaded, err := config.Load(logger, configName())
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.New(logging.ParseLevel(cfg.Log.Level))
		slog.SetDefault(logger)

		fileStore, err := session.NewFileStore(cfg.Session.StorePath)
		if err != nil {
			return err
		}
		store = fileStore
		return nil
	},
}

func configName() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "livechat"
}

// currentSession loads and decodes the persisted credential.
func currentSession() (*session.Session, error) {
	token, err := store.Get()
	if err != nil {
		return nil, err
	}
	return session.FromToken(token)
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file name (default \"livechat\")")
	rootCmd.AddCommand(loginCmd, logoutCmd, roomsCmd, chatCmd)
}
