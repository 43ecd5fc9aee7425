package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

func matchEventFixture() model.MatchEvent {
	return model.MatchEvent{
		SessionID:      "s-1",
		ParticipantIDs: []int64{101, 202},
		SessionType:    enums.SessionRealUser,
	}
}

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestPairingIsLiveUntilCooldownExpires(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewPairingRepo(client)
	ctx := context.Background()

	if err := repo.Record(ctx, 101, 202, time.Hour); err != nil {
		t.Fatalf("record pairing: %v", err)
	}

	live, err := repo.IsLive(ctx, 202, 101)
	if err != nil {
		t.Fatalf("lookup pairing: %v", err)
	}
	if !live {
		t.Fatalf("pairing should be live inside cooldown window")
	}

	mr.FastForward(time.Hour + time.Second)

	live, err = repo.IsLive(ctx, 101, 202)
	if err != nil {
		t.Fatalf("lookup pairing after expiry: %v", err)
	}
	if live {
		t.Fatalf("pairing should have expired with the cooldown")
	}
}

func TestPairingRejectsInvalidPayload(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewPairingRepo(client)

	if err := repo.Record(context.Background(), 101, 101, time.Hour); err == nil {
		t.Fatalf("expected error for self-pairing")
	}
	if err := repo.Record(context.Background(), 101, 202, 0); err == nil {
		t.Fatalf("expected error for zero cooldown")
	}
}

func TestPublishMatchReachesSubscribers(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewSignalRepo(client, "match.events.test")
	ctx := context.Background()

	sub := client.Subscribe(ctx, "match.events.test")
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := repo.PublishMatch(ctx, matchEventFixture()); err != nil {
		t.Fatalf("publish match: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload == "" {
			t.Fatalf("expected non-empty payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for published match event")
	}
}
