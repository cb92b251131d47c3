package utils

import (
	"bytes"
	"testing"

	"discord-guardian-bot/internal/models"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestGenerateCaptcha(t *testing.T) {
	c, err := GenerateCaptcha()
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Code) != 6 {
		t.Fatalf("code length = %d, want 6", len(c.Code))
	}
	if !bytes.HasPrefix(c.Image, pngMagic) {
		t.Fatal("image is not a PNG")
	}
}

func TestCaptchaCodeAlphabet(t *testing.T) {
	// Ambiguous characters (0, O, 1, I) are excluded from the alphabet
	for i := 0; i < 20; i++ {
		c, err := GenerateCaptcha()
		if err != nil {
			t.Fatal(err)
		}
		for _, ch := range c.Code {
			switch ch {
			case '0', 'O', '1', 'I':
				t.Fatalf("ambiguous character %q in code %s", ch, c.Code)
			}
		}
	}
}

func TestViolationEmbedFields(t *testing.T) {
	embed := ViolationEmbed(&models.ViolationLogEntry{
		GuildID:   "g1",
		UserID:    "u1",
		Types:     []string{models.ViolationDuplicate, models.ViolationLinkSpam},
		Action:    models.ActionWarnDelete,
		Strikes:   3,
		CreatedAt: 1_700_000_000_000,
	})

	if embed.Color != colorRed {
		t.Fatalf("color = %#x", embed.Color)
	}
	if len(embed.Fields) != 4 {
		t.Fatalf("fields = %d, want 4", len(embed.Fields))
	}
}

func TestRaidEmbedByEvent(t *testing.T) {
	tests := []struct {
		event string
		color int
	}{
		{models.RaidEventActivated, colorRed},
		{models.RaidEventLockdown, colorRed},
		{models.RaidEventDeactivated, colorGreen},
		{models.RaidEventMemberFlag, colorOrange},
	}

	for _, tt := range tests {
		embed := RaidEmbed(&models.RaidLogEntry{Event: tt.event, CreatedAt: 1_700_000_000_000})
		if embed.Color != tt.color {
			t.Errorf("%s: color = %#x, want %#x", tt.event, embed.Color, tt.color)
		}
	}
}
