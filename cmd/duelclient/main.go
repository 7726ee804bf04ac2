package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	applog "github.com/vovakirdan/typeduel-server/internal/log"
	"github.com/vovakirdan/typeduel-server/internal/proto"
	"github.com/vovakirdan/typeduel-server/internal/racetimer"
	"github.com/vovakirdan/typeduel-server/internal/roomclient"
	"github.com/vovakirdan/typeduel-server/internal/wsclient"
)

const defaultURL = "ws://localhost:8080/ws"

type clientFlags struct {
	url          string
	roomID       string
	name         string
	identityPath string
	logLevel     string
	delay        time.Duration
	duration     time.Duration
}

func main() {
	// Missing .env is fine; it only seeds TYPEDUEL_* variables.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags clientFlags
	timerDefaults := racetimer.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "duelclient",
		Short:         "Terminal participant for a typing duel room",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := bindSettings(cmd)
			if err != nil {
				return err
			}
			flags.url = settings.GetString("url")
			return run(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", defaultURL, "WebSocket address (env TYPEDUEL_URL)")
	cmd.Flags().StringVar(&flags.roomID, "room", "", "room to join or create")
	cmd.Flags().StringVar(&flags.name, "name", "", "display name")
	cmd.Flags().StringVar(&flags.identityPath, "identity", "duelclient.yaml", "file holding the stable player id")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "warn", "log level")
	cmd.Flags().DurationVar(&flags.delay, "delay", timerDefaults.Delay, "pause between session start and race start")
	cmd.Flags().DurationVar(&flags.duration, "duration", timerDefaults.Duration, "race length")
	_ = cmd.MarkFlagRequired("room")

	return cmd
}

func run(parent context.Context, flags clientFlags) error {
	logger := applog.NewWriter(os.Stderr, flags.logLevel)

	id, err := loadIdentity(flags.identityPath, flags.name)
	if err != nil {
		return err
	}

	endpoint, err := withProtocolVersion(flags.url)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	connected := make(chan struct{})
	conn := wsclient.New(endpoint,
		wsclient.WithLogger(logger),
		wsclient.OnConnect(func(first bool) {
			if first {
				close(connected)
				return
			}
			fmt.Println("reconnected")
		}),
	)

	client := roomclient.New(conn,
		roomclient.Params{RoomID: flags.roomID, PlayerID: id.PlayerID, PlayerName: id.Name},
		roomclient.WithLogger(logger),
		roomclient.WithTimerConfig(racetimer.Config{Delay: flags.delay, Duration: flags.duration}),
		roomclient.WithEngine(&consoleEngine{log: logger}),
		roomclient.OnChange(printView()),
	)
	defer client.Close()
	conn.SetHandler(client.Handle)

	connErr := make(chan error, 1)
	go func() {
		connErr <- conn.Run(ctx)
	}()

	fmt.Printf("Connecting to %s as %s (%s), room %s\n", endpoint, id.Name, id.PlayerID, flags.roomID)
	select {
	case <-connected:
	case err := <-connErr:
		return fmt.Errorf("connect: %w", err)
	case <-ctx.Done():
		return nil
	}

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	fmt.Println("Commands: ready | stats <wpm> <accuracy> [errors] | status | leave | quit")

	inputLoop(ctx, cancel, client)

	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), time.Second)
	defer leaveCancel()
	if err := client.Leave(leaveCtx); err != nil && !errors.Is(err, roomclient.ErrNotJoined) {
		logger.Debug().Err(err).Msg("leave on exit")
	}
	cancel()

	if err := <-connErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func inputLoop(ctx context.Context, cancel context.CancelFunc, client *roomclient.Client) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			switch cmd.kind {
			case cmdReady:
				report(client.Ready(ctx))
			case cmdStats:
				report(client.ReportStats(ctx, cmd.stats))
			case cmdStatus:
				fmt.Println(describe(client.View()))
			case cmdLeave:
				report(client.Leave(ctx))
				cancel()
				return
			case cmdQuit:
				cancel()
				return
			}
		}
	}
}

func report(err error) {
	if err != nil {
		fmt.Println("error:", err)
	}
}

// printView prints the status line whenever it changes.
func printView() func(roomclient.View) {
	var last string
	return func(v roomclient.View) {
		line := describe(v)
		if line == last {
			return
		}
		last = line
		fmt.Println(line)
	}
}

func describe(v roomclient.View) string {
	line := fmt.Sprintf("[%s] %s", v.Phase, v.StatusLine())
	if v.Opponent != nil {
		line += " vs " + v.Opponent.Name
	}
	if v.OpponentStats != nil {
		line += fmt.Sprintf(" | opponent %.0f wpm %.0f%%", v.OpponentStats.WPM, v.OpponentStats.Accuracy)
	}
	if v.OpponentDisconnected {
		line += " | opponent disconnected"
	}
	if v.LastError != nil {
		line += " | " + v.LastError.Error()
	}
	return line
}

// consoleEngine stands in for a typing engine.
type consoleEngine struct {
	log *zerolog.Logger
}

func (e *consoleEngine) StartRace(sessionID string) {
	e.log.Info().Str("session", sessionID).Msg("race started")
	fmt.Println("GO! Type, then report with: stats <wpm> <accuracy>")
}

func (e *consoleEngine) StopRace() {
	e.log.Info().Msg("race stopped")
}

func withProtocolVersion(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	if q.Get("v") == "" {
		q.Set("v", strconv.Itoa(proto.ProtocolVersion))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// bindSettings resolves flag, TYPEDUEL_* env and default values.
// Precedence: defaults < env vars < explicit flags.
func bindSettings(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("TYPEDUEL")
	v.SetDefault("url", defaultURL)
	if err := v.BindEnv("url"); err != nil {
		return nil, fmt.Errorf("bind url env: %w", err)
	}
	if err := v.BindPFlag("url", cmd.Flags().Lookup("url")); err != nil {
		return nil, fmt.Errorf("bind url flag: %w", err)
	}
	return v, nil
}
