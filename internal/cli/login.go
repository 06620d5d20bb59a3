package cli

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/itzBaowy/ecms-livechat/internal/directory"
	"github.com/itzBaowy/ecms-livechat/pkg/session"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Authenticate and store the access credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}

		api := directory.NewClient(cfg.API, "", logger)
		token, err := api.Login(cmd.Context(), args[0], string(password))
		if err != nil {
			return err
		}

		sess, err := session.FromToken(token)
		if err != nil {
			return err
		}
		if err := store.Set(token); err != nil {
			return err
		}
		fmt.Printf("Logged in as user %d (%s)\n", sess.UserID, sess.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored access credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.Remove(); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}
