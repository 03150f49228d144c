package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fluently/lingua/internal/dotenv"
	"github.com/fluently/lingua/pkg/core/types"
	"github.com/fluently/lingua/pkg/core/voice"
	lingua "github.com/fluently/lingua/sdk"
)

const (
	defaultBaseURL     = "http://127.0.0.1:8080"
	defaultLanguage    = "fr"
	defaultRecordSecs  = 4
	maxRecordSecs      = 30
	defaultTurnTimeout = 20 * time.Second
)

type chatConfig struct {
	BaseURL     string
	Language    string
	Scenario    string
	APIKey      string
	TurnTimeout time.Duration
	NoVoice     bool
}

func parseChatConfig(args []string, getenv func(string) string) (chatConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := chatConfig{}
	fs := flag.NewFlagSet("lingua-chat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.BaseURL, "base-url", defaultBaseURL, "lingua gateway base URL")
	fs.StringVar(&cfg.Language, "language", defaultLanguage, "target language code (fr, es, de, it, pt, ja)")
	fs.StringVar(&cfg.Scenario, "scenario", "", "optional opening scenario (CAFE, TRAVEL, ...)")
	fs.StringVar(&cfg.APIKey, "api-key", strings.TrimSpace(getenv("LINGUA_API_KEY")), "gateway api key (or LINGUA_API_KEY)")
	fs.DurationVar(&cfg.TurnTimeout, "timeout", defaultTurnTimeout, "per-turn timeout (e.g. 20s)")
	fs.BoolVar(&cfg.NoVoice, "no-voice", false, "disable microphone and speaker")

	if err := fs.Parse(args); err != nil {
		return chatConfig{}, err
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return chatConfig{}, fmt.Errorf("base url must not be empty")
	}
	if _, ok := types.ResolveLanguage(cfg.Language); !ok {
		return chatConfig{}, fmt.Errorf("unsupported language %q", cfg.Language)
	}
	if _, ok := types.ResolveScenario(cfg.Scenario); !ok {
		return chatConfig{}, fmt.Errorf("unknown scenario %q", cfg.Scenario)
	}
	return cfg, nil
}

type chatApp struct {
	cfg     chatConfig
	client  *lingua.Client
	conv    *lingua.Conversation
	profile types.LanguageProfile
	audio   *audioIO
	shim    *voice.Pipeline
	out     io.Writer
	errOut  io.Writer

	lastReply string
	lastKey   string
}

func newChatApp(cfg chatConfig, out, errOut io.Writer) *chatApp {
	profile, _ := types.ResolveLanguage(cfg.Language)
	return &chatApp{
		cfg:     cfg,
		client:  lingua.NewClient(cfg.BaseURL, lingua.WithAPIKey(cfg.APIKey), lingua.WithTurnTimeout(cfg.TurnTimeout)),
		conv:    lingua.NewConversation("", cfg.Language),
		profile: profile,
		shim:    voice.NewPipeline(nil),
		out:     out,
		errOut:  errOut,
	}
}

func (app *chatApp) run(ctx context.Context, in io.Reader) error {
	if !app.cfg.NoVoice {
		audio, err := newAudioIO()
		if err != nil {
			fmt.Fprintf(app.errOut, "audio unavailable, continuing text-only: %v\n", err)
		} else {
			app.audio = audio
			defer audio.Close()
		}
	}

	fmt.Fprintf(app.out, "Chatting with %s in %s. Type a message, or /help for commands.\n",
		app.profile.PersonaName, app.profile.Language)

	if app.cfg.Scenario != "" {
		if err := app.exchange(ctx, lingua.ExchangeRequest{
			Language: app.cfg.Language,
			Scenario: app.cfg.Scenario,
		}); err != nil {
			fmt.Fprintf(app.errOut, "scenario opening failed: %v\n", err)
		}
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(app.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := app.handleCommand(ctx, line); quit {
				return nil
			}
			continue
		}

		if err := app.exchange(ctx, lingua.ExchangeRequest{
			Language: app.cfg.Language,
			Message:  line,
		}); err != nil {
			fmt.Fprintf(app.errOut, "turn failed: %v\n", err)
		}
	}
}

// handleCommand returns true when the loop should exit.
func (app *chatApp) handleCommand(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(app.out, "commands: /scenario <name>, /rec [seconds], /replay, /history, /end, /quit")
	case "/scenario":
		if len(fields) < 2 {
			fmt.Fprintln(app.errOut, "usage: /scenario CAFE|RESTAURANT|TRAVEL|SHOPPING|DIRECTIONS|INTRO|FREE_TALK")
			return false
		}
		// A scenario switch starts a fresh session server-side.
		app.conv = lingua.NewConversation("", app.cfg.Language)
		if err := app.exchange(ctx, lingua.ExchangeRequest{
			Language: app.cfg.Language,
			Scenario: fields[1],
		}); err != nil {
			fmt.Fprintf(app.errOut, "scenario failed: %v\n", err)
		}
	case "/rec":
		app.recordAndSend(ctx, fields)
	case "/replay":
		app.speak(ctx, app.lastKey, app.lastReply)
	case "/history":
		app.printHistory(ctx)
	case "/end":
		if id := app.conv.SessionID(); id != "" {
			if err := app.client.Chat.EndSession(ctx, id); err != nil {
				fmt.Fprintf(app.errOut, "end session: %v\n", err)
			}
		}
		app.conv = lingua.NewConversation("", app.cfg.Language)
		fmt.Fprintln(app.out, "session ended")
	default:
		fmt.Fprintf(app.errOut, "unknown command %s\n", fields[0])
	}
	return false
}

func (app *chatApp) recordAndSend(ctx context.Context, fields []string) {
	if app.audio == nil {
		fmt.Fprintln(app.errOut, "voice is disabled")
		return
	}
	secs := defaultRecordSecs
	if len(fields) > 1 {
		if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 && n <= maxRecordSecs {
			secs = n
		}
	}

	fmt.Fprintf(app.out, "recording for %ds...\n", secs)
	rec, err := app.audio.Record(time.Duration(secs) * time.Second)
	if err != nil {
		fmt.Fprintf(app.errOut, "recording failed: %v\n", err)
		return
	}
	ref, err := app.shim.EncodeForUpload(rec)
	if err != nil {
		fmt.Fprintf(app.errOut, "recording rejected: %v\n", err)
		return
	}

	if err := app.exchange(ctx, lingua.ExchangeRequest{
		Language:      app.cfg.Language,
		AudioData:     ref.Data,
		AudioMIMEType: ref.MIMEType,
	}); err != nil {
		fmt.Fprintf(app.errOut, "turn failed: %v\n", err)
	}
}

func (app *chatApp) exchange(ctx context.Context, req lingua.ExchangeRequest) error {
	resp, err := app.client.Chat.Exchange(ctx, app.conv, req)
	if err != nil {
		return err
	}
	app.render(resp)

	if resp.Response.TargetText != "" {
		app.lastReply = resp.Response.TargetText
		app.lastKey = fmt.Sprintf("%s:%d", resp.SessionID, len(app.conv.Turns()))
		app.speak(ctx, app.lastKey, app.lastReply)
	}
	return nil
}

func (app *chatApp) render(resp *lingua.ExchangeResponse) {
	if resp.Correction.HasMistake {
		fmt.Fprintf(app.out, "  correction: %s\n", resp.Correction.CorrectedText)
		if resp.Correction.Explanation != "" {
			fmt.Fprintf(app.out, "  note: %s\n", resp.Correction.Explanation)
		}
	}
	fmt.Fprintf(app.out, "%s: %s\n", resp.Persona, resp.Response.TargetText)
	if resp.Response.English != "" {
		fmt.Fprintf(app.out, "  en: %s\n", resp.Response.English)
	}
	if resp.Response.Chinese != "" {
		fmt.Fprintf(app.out, "  zh: %s\n", resp.Response.Chinese)
	}
}

func (app *chatApp) speak(ctx context.Context, key, text string) {
	if app.audio == nil || text == "" {
		return
	}
	clip, err := app.client.Speech.Speak(ctx, key, text, app.profile.VoiceName)
	if err != nil {
		fmt.Fprintf(app.errOut, "speech unavailable: %v\n", err)
		return
	}
	buf, err := app.shim.DecodeForPlayback(clip)
	if err != nil {
		fmt.Fprintf(app.errOut, "cannot play clip: %v\n", err)
		return
	}
	if err := app.audio.Play(buf); err != nil {
		fmt.Fprintf(app.errOut, "playback failed: %v\n", err)
	}
}

func (app *chatApp) printHistory(ctx context.Context) {
	id := app.conv.SessionID()
	if id == "" {
		fmt.Fprintln(app.out, "no session yet")
		return
	}
	turns, err := app.client.Chat.History(ctx, id)
	if err != nil {
		fmt.Fprintf(app.errOut, "history: %v\n", err)
		return
	}
	for _, turn := range turns {
		speaker := "you"
		if turn.Role == types.RoleTutor {
			speaker = app.profile.PersonaName
		}
		text := turn.Text
		if text == "" && turn.Audio != nil {
			if raw, err := base64.StdEncoding.DecodeString(turn.Audio.Data); err == nil {
				text = fmt.Sprintf("[audio, %d bytes]", len(raw))
			} else {
				text = "[audio]"
			}
		}
		fmt.Fprintf(app.out, "%s: %s\n", speaker, text)
	}
}

func runMain(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(errOut, "lingua-chat: %v\n", err)
		return 1
	}

	cfg, err := parseChatConfig(args, os.Getenv)
	if err != nil {
		fmt.Fprintf(errOut, "lingua-chat: %v\n", err)
		return 1
	}

	app := newChatApp(cfg, out, errOut)
	if err := app.run(ctx, in); err != nil {
		fmt.Fprintf(errOut, "lingua-chat: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
