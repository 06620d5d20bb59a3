package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itzBaowy/ecms-livechat/internal/directory"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List your chat rooms (staff also see pending requests)",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentSession()
		if err != nil {
			return err
		}

		api := directory.NewClient(cfg.API, sess.Token, logger)
		rooms, err := api.MyRooms(cmd.Context())
		if err != nil {
			return err
		}
		if sess.IsStaff() {
			pending, err := api.PendingRooms(cmd.Context())
			if err != nil {
				return err
			}
			rooms = append(rooms, pending...)
		}

		if len(rooms) == 0 {
			fmt.Println("No rooms")
			return nil
		}
		for _, room := range rooms {
			badge := " "
			if room.HasNewMessage {
				badge = "*"
			}
			fmt.Printf("%s %6d  %-8s  %s\n", badge, room.ID, room.Status, room.Name)
		}
		return nil
	},
}
