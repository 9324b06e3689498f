// chatcli is a terminal client for a chatify server. It talks to the same
// REST endpoints and WebSocket the browser client uses.
//
//	chatcli login -e alice@example.com -p secret123
//	export CHATIFY_TOKEN=...
//	chatcli users
//	chatcli send <userId> "hello"
//	chatcli watch <userId>
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/aquilax/truncate"
	"github.com/spf13/cobra"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg/logger"
	"github.com/Ajay-css/chatify/session"
)

// Flag variables.
var (
	serverURL, token, logLevel string
	fullName, email, password  string
	attachPath                 string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "chatcli",
	Short:         "Terminal client for a chatify server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logLevel)
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and print its token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api := newAPI()
		acc, err := api.Signup(cmd.Context(), models.SignupRequest{FullName: fullName, Email: email, Password: password})
		if err != nil {
			return fmt.Errorf("signup: %w", err)
		}
		printAccount(acc)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print the token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api := newAPI()
		acc, err := api.Login(cmd.Context(), models.LoginRequest{Email: email, Password: password})
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		printAccount(acc)
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List everyone you can chat with",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := authedAPI()
		if err != nil {
			return err
		}
		users, err := api.Users(cmd.Context())
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tONLINE")
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", u.ID, u.FullName, u.Email, u.IsOnline)
		}
		return tw.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <userId>",
	Short: "Print the conversation with a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := authedAPI()
		if err != nil {
			return err
		}
		me, err := api.Check(cmd.Context())
		if err != nil {
			return fmt.Errorf("check token: %w", err)
		}
		msgs, err := api.Conversation(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}
		for _, m := range msgs {
			printMessage(me.ID, m)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <userId> [text]",
	Short: "Send a message, optionally with --file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := authedAPI()
		if err != nil {
			return err
		}
		var text string
		if len(args) == 2 {
			text = args[1]
		}

		var msg *models.Message
		if attachPath != "" {
			f, err := os.Open(attachPath)
			if err != nil {
				return fmt.Errorf("open attachment: %w", err)
			}
			defer f.Close()
			msg, err = api.SendFile(cmd.Context(), args[0], text, filepath.Base(attachPath), f)
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}
		} else {
			msg, err = api.Send(cmd.Context(), args[0], models.CreateMessageRequest{Text: text})
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
		fmt.Printf("sent %s (%s)\n", msg.ID, msg.Kind)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [userId]",
	Short: "Stay connected, print presence and incoming messages",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := authedAPI()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		me, err := api.Check(ctx)
		if err != nil {
			return fmt.Errorf("check token: %w", err)
		}

		state := session.NewState(me.ID, api)
		state.OnMessage(func(m models.Message) { printMessage(me.ID, m) })
		if err := state.LoadUsers(ctx); err != nil {
			return err
		}

		client := session.NewClient(state, session.ClientConfig{
			ServerURL: api.BaseURL(),
			Token:     api.Token(),
			UserID:    me.ID,
		})

		errCh := make(chan error, 1)
		go func() { errCh <- client.Run(ctx) }()

		select {
		case <-client.Connected():
		case err := <-errCh:
			return fmt.Errorf("connect: %w", err)
		case <-ctx.Done():
			return nil
		}
		fmt.Printf("connected as %s (%s)\n", me.FullName, me.ID)

		if len(args) == 1 {
			if err := client.SelectPartner(ctx, args[0]); err != nil {
				return fmt.Errorf("open conversation: %w", err)
			}
			for _, m := range state.Messages() {
				printMessage(me.ID, m)
			}
		}

		var lastOnline string
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				<-errCh
				return nil
			case err := <-errCh:
				return err
			case n := <-state.Notifications():
				fmt.Printf("[%s] %s\n", n.At.Format(time.Kitchen), n)
			case <-ticker.C:
				online := strings.Join(state.OnlineUsers(), ", ")
				if online != lastOnline {
					fmt.Printf("online: %s\n", online)
					lastOnline = online
				}
			}
		}
	},
}

func init() {
	defaultServer := os.Getenv("CHATIFY_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:5000"
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServer,
		"Server base URL. Defaults to $CHATIFY_URL.")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", os.Getenv("CHATIFY_TOKEN"),
		"Access token. Defaults to $CHATIFY_TOKEN.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level: debug, info, warn, error.")

	signupCmd.Flags().StringVarP(&fullName, "name", "n", "", "Full name.")
	signupCmd.Flags().StringVarP(&email, "email", "e", "", "Email address.")
	signupCmd.Flags().StringVarP(&password, "password", "p", "", "Password (8+ characters).")
	_ = signupCmd.MarkFlagRequired("name")
	_ = signupCmd.MarkFlagRequired("email")
	_ = signupCmd.MarkFlagRequired("password")

	loginCmd.Flags().StringVarP(&email, "email", "e", "", "Email address.")
	loginCmd.Flags().StringVarP(&password, "password", "p", "", "Password.")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	sendCmd.Flags().StringVarP(&attachPath, "file", "f", "", "Attach a file.")

	rootCmd.AddCommand(signupCmd, loginCmd, usersCmd, historyCmd, sendCmd, watchCmd)
}

func newAPI() *session.API {
	return session.NewAPI(serverURL, nil)
}

func authedAPI() (*session.API, error) {
	if token == "" {
		return nil, fmt.Errorf("no token: run login and export CHATIFY_TOKEN, or pass --token")
	}
	api := newAPI()
	api.SetToken(token)
	return api, nil
}

func printAccount(acc *session.Account) {
	fmt.Printf("logged in as %s <%s> id=%s\n", acc.User.FullName, acc.User.Email, acc.User.ID)
	fmt.Printf("export CHATIFY_TOKEN=%s\n", acc.Token)
}

func printMessage(selfID string, m models.Message) {
	who := "them"
	if m.SenderID == selfID {
		who = "me"
	}

	body := m.Text
	if m.HasAttachment() {
		body = strings.TrimSpace(body + " [" + string(m.Kind) + " " + truncate.Truncate(m.FileURL, 40, "...", truncate.PositionMiddle) + "]")
	}

	seen := ""
	if m.SenderID == selfID && m.Seen {
		seen = " ✓"
	}
	fmt.Printf("%s %-4s %s%s\n", m.CreatedAt.Local().Format("Jan 02 15:04"), who, body, seen)
}
