// Package main is a terminal co-viewer: it joins a session, drives a simulated
// player and chat from stdin and mirrors what the peer does.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/learnhub/studyroom/config"
	"github.com/learnhub/studyroom/internal/chat"
	"github.com/learnhub/studyroom/internal/coview"
	"github.com/learnhub/studyroom/internal/models"
	"github.com/learnhub/studyroom/internal/playback"
	"github.com/learnhub/studyroom/internal/protocol"
	"github.com/learnhub/studyroom/internal/store"
	"github.com/learnhub/studyroom/internal/testimonials"
	"github.com/learnhub/studyroom/pkg/apiclient"
)

const help = `commands:
  play | pause           start or stop playback for both viewers
  seek <seconds>         jump to a position
  fwd | back             skip 10s
  say <text>             send a chat message
  select <section> [res] switch the active resource (local only)
  status                 show position and selection
  review <1-5> <text>    leave a testimonial
  retry                  resend testimonials kept offline
  quit`

func main() {
	sessionFlag := flag.String("session", "", "session id to join")
	teacher := flag.Bool("teacher", false, "keep the teacher profile cache fresh")
	blockAutoplay := flag.Bool("block-autoplay", false, "refuse remote play until a local command")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := newLogger(*verbose)
	defer logger.Sync()

	sessionID, err := uuid.Parse(*sessionFlag)
	if err != nil {
		logger.Fatal("invalid -session", zap.String("session", *sessionFlag), zap.Error(err))
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	st, writer, err := store.Open(cfg.Client.StatePath, logger)
	if err != nil {
		logger.Fatal("open state", zap.Error(err))
	}
	if cfg.Client.Token != "" && cfg.Client.Token != st.Token() {
		if err := writer.SetToken(cfg.Client.Token); err != nil {
			logger.Fatal("save token", zap.Error(err))
		}
	}
	if st.Token() == "" {
		logger.Fatal("no token: set AUTH_TOKEN")
	}

	api, err := apiclient.New(apiclient.Config{
		BaseURL: cfg.Client.APIBaseURL,
		Timeout: cfg.Client.RequestTimeout,
		Tokens:  apiclient.TokenFunc(st.Token),
		OnUnauthorized: func() {
			logger.Warn("token rejected, clearing session")
			if err := writer.ClearSession(); err != nil {
				logger.Error("clear session", zap.Error(err))
			}
		},
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("api client", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *teacher {
		profiles := store.NewProfileSync(api, st, writer, cfg.Client.ProfilePollInterval, logger)
		go profiles.Run(ctx)
		st.Subscribe(func(s store.State) {
			if s.Profile != nil {
				fmt.Printf("* profile: %s\n", s.Profile.DisplayName)
			}
		})
	}

	player := playback.NewSimulatedPlayer(0, nil)
	if *blockAutoplay {
		player.BlockAutoplay()
	}
	view, err := coview.Open(ctx, api, sessionID, coview.Options{
		RelayURL: cfg.Client.RelayURL,
		Token:    st.Token(),
		Player:   player,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("open session", zap.Error(err))
	}
	defer view.Close()

	view.OnPeerJoined(func(p protocol.PeerJoinedPayload) { fmt.Printf("* %s joined\n", nameOr(p.Name, p.UserID)) })
	view.OnRefused(func(p protocol.ErrorPayload) { fmt.Printf("! %s refused: %s\n", p.Event, p.Message) })
	var (
		printMu sync.Mutex
		printed int
	)
	showNew := func(list []models.ChatMessage) {
		printMu.Lock()
		defer printMu.Unlock()
		for _, m := range list[min(printed, len(list)):] {
			printMessage(m)
		}
		printed = len(list)
	}
	view.Chat().OnUpdate(showNew)
	showNew(view.Chat().Messages())

	reviews := testimonials.NewService(api, logger)

	fmt.Printf("joined session %s (%s)\n%s\n", sessionID, view.Session().ContentType, help)
	printSelection(view)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-view.Done():
			fmt.Println("* relay disconnected")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := run(ctx, view, player, reviews, line); quit {
				return
			}
		}
	}
}

func run(ctx context.Context, view *coview.View, player *playback.SimulatedPlayer, reviews *testimonials.Service, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	pb := view.Playback()
	var err error
	switch cmd {
	case "":
	case "play":
		player.Gesture()
		err = pb.Play()
	case "pause":
		err = pb.Pause()
	case "seek":
		var t float64
		if t, err = strconv.ParseFloat(arg, 64); err == nil {
			err = pb.CommitSeek(t)
		}
	case "fwd":
		err = pb.SkipForward()
	case "back":
		err = pb.SkipBackward()
	case "say":
		view.Chat().SetInput(arg)
		err = view.Chat().Send(ctx)
		if errors.Is(err, chat.ErrEmptyMessage) {
			err = nil
		}
	case "select":
		err = selectCmd(view, arg)
		if err == nil {
			printSelection(view)
		}
	case "status":
		printSelection(view)
		fmt.Printf("* %.1fs / %.1fs paused=%v\n", player.CurrentTime(), player.Duration(), player.Paused())
	case "review":
		err = review(ctx, reviews, arg)
	case "retry":
		var synced []models.Testimonial
		synced, err = reviews.RetryPending(ctx)
		fmt.Printf("* %d synced, %d pending\n", len(synced), len(reviews.Pending()))
	case "quit", "exit":
		return true
	default:
		fmt.Println(help)
	}
	if err != nil {
		fmt.Printf("! %v\n", err)
	}
	return false
}

func selectCmd(view *coview.View, arg string) error {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return fmt.Errorf("usage: select <section> [resource]")
	}
	i, err := strconv.Atoi(fields[0])
	if err != nil {
		return err
	}
	j := 0
	if len(fields) > 1 {
		if j, err = strconv.Atoi(fields[1]); err != nil {
			return err
		}
	}
	return view.SelectResource(i, j)
}

func review(ctx context.Context, reviews *testimonials.Service, arg string) error {
	ratingStr, text, _ := strings.Cut(arg, " ")
	rating, err := strconv.Atoi(ratingStr)
	if err != nil {
		return fmt.Errorf("usage: review <1-5> <text>")
	}
	t, err := reviews.Submit(ctx, models.Testimonial{Content: text, Rating: rating})
	if err != nil {
		return err
	}
	if t.Status == models.TestimonialPendingSync {
		fmt.Println("* offline: testimonial kept locally, use retry")
		return nil
	}
	fmt.Println("* testimonial saved")
	return nil
}

func printSelection(view *coview.View) {
	res, ok := view.Selected()
	if !ok {
		fmt.Println("* no content")
		return
	}
	fmt.Printf("* now showing %q (%s)\n", res.Title, res.Kind)
}

func printMessage(m models.ChatMessage) {
	fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), nameOr(m.Sender, m.SenderID), m.Content)
}

func nameOr(name string, id uuid.UUID) string {
	if name != "" {
		return name
	}
	return id.String()[:8]
}

func newLogger(verbose bool) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !verbose {
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, _ := config.Build()
	return logger
}
