package relay

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const onlineSetKey = "presence:online"

// Presence mirrors the set of online subjects into Redis so the HTTP
// surface (and ops tooling) can read presence without touching the hub.
// Every operation is best-effort: a Redis hiccup is logged and never fails
// the session path. A nil Presence is a valid no-op mirror.
type Presence struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewPresence(rdb *redis.Client, log *slog.Logger) *Presence {
	return &Presence{rdb: rdb, log: log}
}

func (p *Presence) SetOnline(ctx context.Context, subjectID string) {
	if p == nil || p.rdb == nil {
		return
	}
	if err := p.rdb.SAdd(ctx, onlineSetKey, subjectID).Err(); err != nil {
		p.log.Warn("presence mirror add failed", "user_id", subjectID, "error", err)
	}
}

func (p *Presence) SetOffline(ctx context.Context, subjectID string) {
	if p == nil || p.rdb == nil {
		return
	}
	if err := p.rdb.SRem(ctx, onlineSetKey, subjectID).Err(); err != nil {
		p.log.Warn("presence mirror remove failed", "user_id", subjectID, "error", err)
	}
}

func (p *Presence) Snapshot(ctx context.Context) ([]string, error) {
	if p == nil || p.rdb == nil {
		return nil, nil
	}
	return p.rdb.SMembers(ctx, onlineSetKey).Result()
}
