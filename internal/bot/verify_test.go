package bot

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"discord-guardian-bot/internal/actions"
	"discord-guardian-bot/internal/config"
	"discord-guardian-bot/internal/engine"
)

func newVerifyBot(t *testing.T) (*Bot, *actions.CaptchaTracker) {
	t.Helper()
	eng := engine.New(zap.NewNop(), nil, nil, nil, nil, config.Defaults())

	cfg := config.Defaults()
	cfg.VerifyRoleID = "role-verified"
	eng.SetGuildConfig("g1", cfg)

	tracker := actions.NewCaptchaTracker()
	return &Bot{Engine: eng, Logger: zap.NewNop(), Verifier: tracker}, tracker
}

func TestVerificationGrantsRoleOnCorrectCode(t *testing.T) {
	b, tracker := newVerifyBot(t)
	tracker.Track("g1", "u1", "ABC123")

	reply, role := b.resolveVerification("g1", "u1", "ABC123")
	if role != "role-verified" {
		t.Fatalf("granted role = %q, want role-verified", role)
	}
	if !strings.Contains(reply, "verified") {
		t.Fatalf("reply = %q", reply)
	}

	// The challenge is consumed; a replay fails
	if _, role := b.resolveVerification("g1", "u1", "ABC123"); role != "" {
		t.Fatal("replayed code accepted")
	}
}

func TestVerificationTrimsAnswer(t *testing.T) {
	b, tracker := newVerifyBot(t)
	tracker.Track("g1", "u1", "XYZ789")

	if _, role := b.resolveVerification("g1", "u1", "  XYZ789 "); role != "role-verified" {
		t.Fatal("padded answer rejected")
	}
}

func TestVerificationRejectsWrongCode(t *testing.T) {
	b, tracker := newVerifyBot(t)
	tracker.Track("g1", "u1", "ABC123")

	reply, role := b.resolveVerification("g1", "u1", "NOPE")
	if role != "" {
		t.Fatalf("wrong code granted role %q", role)
	}
	if !strings.Contains(reply, "Rejoin") {
		t.Fatalf("reply = %q", reply)
	}

	// A failed attempt does not consume the challenge
	if _, role := b.resolveVerification("g1", "u1", "ABC123"); role != "role-verified" {
		t.Fatal("correct code rejected after a wrong attempt")
	}
}

func TestVerificationWithoutConfiguredRole(t *testing.T) {
	b, tracker := newVerifyBot(t)
	tracker.Track("g2", "u1", "ABC123") // g2 runs on defaults, no verify role

	reply, role := b.resolveVerification("g2", "u1", "ABC123")
	if role != "" {
		t.Fatalf("role granted with none configured: %q", role)
	}
	if !strings.Contains(reply, "verified") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestVerificationWithoutVerifier(t *testing.T) {
	b, _ := newVerifyBot(t)
	b.Verifier = nil

	if _, role := b.resolveVerification("g1", "u1", "ABC123"); role != "" {
		t.Fatal("verification succeeded with no verifier attached")
	}
}

func TestModalInputFindsTextField(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: "guardverify_g1",
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "verify_code", Value: "ABC123"},
				},
			},
		},
	}
	if got := modalInput(data); got != "ABC123" {
		t.Fatalf("modal input = %q", got)
	}
	if got := modalInput(discordgo.ModalSubmitInteractionData{}); got != "" {
		t.Fatalf("empty modal input = %q", got)
	}
}

func TestInteractionUserID(t *testing.T) {
	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "u-dm"},
	}}
	if got := interactionUserID(dm); got != "u-dm" {
		t.Fatalf("dm user = %q", got)
	}

	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "u-guild"}},
	}}
	if got := interactionUserID(guild); got != "u-guild" {
		t.Fatalf("guild user = %q", got)
	}

	if got := interactionUserID(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}); got != "" {
		t.Fatalf("anonymous interaction user = %q", got)
	}
}
