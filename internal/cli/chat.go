package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itzBaowy/ecms-livechat/internal/client"
	"github.com/itzBaowy/ecms-livechat/pkg/state"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Connect to the live chat and talk interactively",
	Long: `Connect to the message bus and enter an interactive loop.

Commands inside the loop:
  /rooms        list cached rooms and the unread counter
  /new          open a new support request (customers)
  /join <id>    claim a pending request (staff)
  /open <id>    make a room the active conversation
  /close        close the active conversation
  /quit         disconnect and exit

Any other input is sent to the active conversation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentSession()
		if err != nil {
			return err
		}

		c := client.New(logger, cfg, sess)
		c.OnUpdate = func() {
			snap := c.Snapshot()
			if snap.ActiveRoomID != 0 {
				transcript := c.Transcript(snap.ActiveRoomID)
				if len(transcript) > 0 {
					printEntry(transcript[len(transcript)-1])
				}
			}
			if snap.UnreadCount > 0 {
				fmt.Printf("[%d unread]\n", snap.UnreadCount)
			}
		}

		if err := c.Start(cmd.Context()); err != nil {
			return err
		}
		defer c.Stop()
		fmt.Println("Connected. Type /rooms to list rooms, /quit to exit.")

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				return nil
			}
			if err := runChatCommand(cmd, c, line); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		}
		return scanner.Err()
	},
}

func runChatCommand(cmd *cobra.Command, c *client.Client, line string) error {
	switch {
	case line == "/rooms":
		snap := c.Snapshot()
		fmt.Printf("unread: %d\n", snap.UnreadCount)
		for _, room := range snap.Rooms {
			badge := " "
			if room.HasNewMessage {
				badge = "*"
			}
			marker := " "
			if room.ID == snap.ActiveRoomID {
				marker = ">"
			}
			fmt.Printf("%s%s %6d  %-8s  %s\n", marker, badge, room.ID, room.Status, room.Name)
		}
		return nil

	case line == "/new":
		room, err := c.CreateRoom(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Opened request %d\n", room.ID)
		return c.OpenRoom(cmd.Context(), room.ID)

	case strings.HasPrefix(line, "/join "):
		id, err := parseRoomID(strings.TrimPrefix(line, "/join "))
		if err != nil {
			return err
		}
		room, err := c.JoinRoom(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("Joined room %d\n", room.ID)
		return c.OpenRoom(cmd.Context(), room.ID)

	case strings.HasPrefix(line, "/open "):
		id, err := parseRoomID(strings.TrimPrefix(line, "/open "))
		if err != nil {
			return err
		}
		if err := c.OpenRoom(cmd.Context(), id); err != nil {
			return err
		}
		for _, entry := range c.Transcript(id) {
			printEntry(entry)
		}
		return nil

	case line == "/close":
		snap := c.Snapshot()
		if snap.ActiveRoomID == 0 {
			return fmt.Errorf("no active conversation")
		}
		return c.CloseRoom(cmd.Context(), snap.ActiveRoomID)

	default:
		snap := c.Snapshot()
		if snap.ActiveRoomID == 0 {
			return fmt.Errorf("no active conversation, /open a room first")
		}
		return c.SendMessage(snap.ActiveRoomID, line)
	}
}

func parseRoomID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid room id %q", s)
	}
	return id, nil
}

func printEntry(entry state.ChatMessage) {
	if entry.System {
		fmt.Printf("-- %s --\n", entry.Content)
		return
	}
	name := entry.SenderName
	if name == "" {
		name = strconv.FormatInt(entry.SenderID, 10)
	}
	fmt.Printf("[%s] %s: %s\n", entry.Timestamp.Format("15:04:05"), name, entry.Content)
}
