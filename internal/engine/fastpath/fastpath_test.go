package fastpath

import (
	"fmt"
	"testing"
	"time"
)

const messageFrame = `{
	"id": "1145533104281698418",
	"guild_id": "g1",
	"channel_id": "c1",
	"content": "hello @everyone",
	"timestamp": "2023-08-28T12:00:00.000Z",
	"mention_everyone": true,
	"mentions": [{"id": "m1"}, {"id": "m2"}],
	"mention_roles": ["r1"],
	"author": {"id": "u1", "username": "someone", "bot": false}
}`

const joinFrame = `{
	"guild_id": "g1",
	"joined_at": "2023-08-28T12:00:00.000Z",
	"user": {"id": "1145533104281698418", "username": "newcomer", "avatar": ""}
}`

func TestParseMessageFrame(t *testing.T) {
	ev := ParseFrame("MESSAGE_CREATE", []byte(messageFrame))
	if ev == nil {
		t.Fatal("frame rejected")
	}
	if ev.Kind != KindMessage {
		t.Fatalf("kind = %d", ev.Kind)
	}
	if ev.GuildID != "g1" || ev.ChannelID != "c1" || ev.UserID != "u1" {
		t.Fatalf("ids = %s/%s/%s", ev.GuildID, ev.ChannelID, ev.UserID)
	}
	if ev.MentionUsers != 2 || ev.MentionRoles != 1 || !ev.MentionEveryone {
		t.Fatalf("mentions = %d/%d everyone=%v", ev.MentionUsers, ev.MentionRoles, ev.MentionEveryone)
	}
	if ev.Bot {
		t.Fatal("bot flag set")
	}

	want, _ := time.Parse(time.RFC3339, "2023-08-28T12:00:00.000Z")
	if ev.TimestampMs != want.UnixMilli() {
		t.Fatalf("timestamp = %d, want %d", ev.TimestampMs, want.UnixMilli())
	}
}

func TestParseMessageTimestampFromSnowflake(t *testing.T) {
	frame := `{"id": "1145533104281698418", "guild_id": "g1", "channel_id": "c1", "author": {"id": "u1"}}`
	ev := ParseFrame("MESSAGE_CREATE", []byte(frame))
	if ev == nil {
		t.Fatal("frame rejected")
	}
	if ev.TimestampMs != SnowflakeTimeMs("1145533104281698418") {
		t.Fatalf("timestamp = %d, want snowflake time", ev.TimestampMs)
	}
}

func TestParseMessageRejectsDMs(t *testing.T) {
	frame := `{"id": "1", "channel_id": "c1", "author": {"id": "u1"}}`
	if ev := ParseFrame("MESSAGE_CREATE", []byte(frame)); ev != nil {
		t.Fatalf("DM frame accepted: %+v", ev)
	}
}

func TestParseJoinFrame(t *testing.T) {
	ev := ParseFrame("GUILD_MEMBER_ADD", []byte(joinFrame))
	if ev == nil {
		t.Fatal("frame rejected")
	}
	if ev.Kind != KindJoin || ev.GuildID != "g1" || ev.Username != "newcomer" {
		t.Fatalf("parsed = %+v", ev)
	}
	if !ev.AvatarIsDefault {
		t.Fatal("empty avatar not flagged as default")
	}

	created := SnowflakeTimeMs("1145533104281698418")
	joined, _ := time.Parse(time.RFC3339, "2023-08-28T12:00:00.000Z")
	if ev.AccountAgeMs != joined.UnixMilli()-created {
		t.Fatalf("account age = %d", ev.AccountAgeMs)
	}
}

func TestParseIgnoresOtherEvents(t *testing.T) {
	if ev := ParseFrame("TYPING_START", []byte(`{"guild_id": "g1"}`)); ev != nil {
		t.Fatalf("unrelated event parsed: %+v", ev)
	}
}

func TestSnowflakeTimeMs(t *testing.T) {
	tests := []struct {
		id   string
		want int64
	}{
		// 4194304 = 1 << 22, one millisecond past the epoch
		{"4194304", discordEpochMs + 1},
		{"0", discordEpochMs},
		{"", 0},
		{"not-a-number", 0},
		{"12ab34", 0},
	}
	for _, tt := range tests {
		if got := SnowflakeTimeMs(tt.id); got != tt.want {
			t.Errorf("SnowflakeTimeMs(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestRingPushPop(t *testing.T) {
	r := NewRing()

	for i := 0; i < 100; i++ {
		if !r.Push(&FastEvent{Kind: KindMessage, MessageID: fmt.Sprint(i)}) {
			t.Fatalf("push %d refused", i)
		}
	}
	if r.Len() != 100 {
		t.Fatalf("len = %d", r.Len())
	}

	for i := 0; i < 100; i++ {
		ev, ok := r.Pop()
		if !ok || ev.MessageID != fmt.Sprint(i) {
			t.Fatalf("pop %d = (%+v, %v)", i, ev, ok)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatal("pop succeeded on empty ring")
	}
}

func TestRingDropsWhenFull(t *testing.T) {
	r := NewRing()

	for i := 0; i < BufferSize; i++ {
		if !r.Push(&FastEvent{}) {
			t.Fatalf("push %d refused before capacity", i)
		}
	}
	if r.Push(&FastEvent{}) {
		t.Fatal("push accepted past capacity")
	}

	// Draining one slot makes room for exactly one more
	r.Pop()
	if !r.Push(&FastEvent{}) {
		t.Fatal("push refused after drain")
	}
}

func TestRingWrapsAround(t *testing.T) {
	r := NewRing()

	// Cycle well past the capacity to exercise index wrapping
	for i := 0; i < BufferSize*3; i++ {
		if !r.Push(&FastEvent{MentionUsers: i}) {
			t.Fatalf("push %d refused", i)
		}
		ev, ok := r.Pop()
		if !ok || ev.MentionUsers != i {
			t.Fatalf("pop %d = (%+v, %v)", i, ev, ok)
		}
	}
}

func TestRingSPSCConcurrent(t *testing.T) {
	r := NewRing()
	const n = 100_000

	done := make(chan int)
	go func() {
		seen := 0
		for seen < n {
			if ev, ok := r.Pop(); ok {
				if ev.MentionUsers != seen {
					t.Errorf("out of order: got %d, want %d", ev.MentionUsers, seen)
					break
				}
				seen++
			}
		}
		done <- seen
	}()

	for i := 0; i < n; i++ {
		for !r.Push(&FastEvent{MentionUsers: i}) {
		}
	}

	if seen := <-done; seen != n {
		t.Fatalf("consumer saw %d events, want %d", seen, n)
	}
}

func BenchmarkParseMessageFrame(b *testing.B) {
	raw := []byte(messageFrame)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ParseFrame("MESSAGE_CREATE", raw)
	}
}

func BenchmarkRingPushPop(b *testing.B) {
	r := NewRing()
	ev := &FastEvent{Kind: KindMessage}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Push(ev)
		r.Pop()
	}
}
