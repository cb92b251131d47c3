package bot

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"discord-guardian-bot/internal/engine"
	"discord-guardian-bot/internal/engine/fastpath"
	"discord-guardian-bot/internal/metrics"
)

// Bot owns the gateway session and feeds pre-parsed events into the
// engine through the fastpath ring
type Bot struct {
	Session  *discordgo.Session
	Engine   *engine.Engine
	Logger   *zap.Logger
	Verifier Verifier

	ring      *fastpath.Ring
	startTime time.Time
}

// Verifier answers captcha attempts for challenges the executor issued
type Verifier interface {
	Verify(guildID, userID, answer string) bool
}

// New builds the session with the intents and transport tuning raid
// detection needs. The engine is attached afterwards, before Start,
// because its action executor needs the session first.
func New(token string, logger *zap.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("session error: %w", err)
	}

	// Keep-alive pooled transport; enforcement calls are latency
	// sensitive during a raid burst
	s.Client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   50,
			IdleConnTimeout:       120 * time.Second,
			ForceAttemptHTTP2:     true,
			ResponseHeaderTimeout: 5 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
		},
		Timeout: 15 * time.Second,
	}

	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildBans

	s.ShouldReconnectOnError = true
	s.ShouldRetryOnRateLimit = true
	s.MaxRestRetries = 3

	b := &Bot{
		Session:   s,
		Logger:    logger,
		ring:      fastpath.NewRing(),
		startTime: time.Now(),
	}

	s.AddHandler(b.ready)
	s.AddHandler(b.rawEvent)
	s.AddHandler(b.interactionCreate)

	return b, nil
}

// AttachEngine installs the engine; must happen before Start
func (b *Bot) AttachEngine(eng *engine.Engine) {
	b.Engine = eng
}

// AttachVerifier installs the captcha answer checker; must happen
// before Start
func (b *Bot) AttachVerifier(v Verifier) {
	b.Verifier = v
}

// rawEvent is the single gateway entry point: frames are screened by
// the fastpath parser and pushed onto the ring. Nothing here blocks;
// a full ring drops the event with a metric bump.
func (b *Bot) rawEvent(s *discordgo.Session, e *discordgo.Event) {
	if len(e.RawData) == 0 || e.Type == "" {
		return
	}
	evt := fastpath.ParseFrame(e.Type, e.RawData)
	if evt == nil {
		return
	}
	// The bot's own messages never enter the pipeline
	if s.State.User != nil && evt.UserID == s.State.User.ID {
		return
	}
	if !b.ring.Push(evt) {
		metrics.EventsDropped.Inc()
	}
}

func (b *Bot) ready(s *discordgo.Session, r *discordgo.Ready) {
	b.Logger.Info("gateway ready",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

// Start opens the gateway, starts the ring consumer and the engine
// sweep, and blocks until a signal arrives
func (b *Bot) Start() error {
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("gateway connection failed: %w", err)
	}

	if b.Session.State.User == nil {
		u, err := b.Session.User("@me")
		if err != nil {
			return fmt.Errorf("failed to get bot user: %w", err)
		}
		b.Session.State.User = u
	}
	b.Logger.Info("logged in",
		zap.String("user", b.Session.State.User.Username),
		zap.String("id", b.Session.State.User.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := fastpath.NewConsumer(b.ring, b.dispatch)
	go consumer.Run(ctx)
	go b.Engine.Run(ctx)
	go b.monitorHeartbeat(ctx)

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	return b.Close(cancel)
}

// Close flushes engine state and shuts the session down
func (b *Bot) Close(cancel context.CancelFunc) error {
	b.Logger.Info("shutting down", zap.Duration("uptime", time.Since(b.startTime)))
	cancel()
	b.Engine.Flush()
	b.Logger.Sync()
	return b.Session.Close()
}

func (b *Bot) monitorHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			latency := b.Session.HeartbeatLatency()
			if latency > 200*time.Millisecond {
				b.Logger.Warn("gateway latency high", zap.Duration("latency", latency))
			}
		}
	}
}
