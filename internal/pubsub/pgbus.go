package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PgBus delivers messages through Postgres LISTEN/NOTIFY so every backend
// instance sharing the database sees them.
type PgBus[T any] struct {
	conn     *pgx.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	log      zerolog.Logger
	connMu   sync.Mutex
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string]map[uint64]func(T)
}

func NewPgBus[T any](parentCtx context.Context, dsn string, log zerolog.Logger) (*PgBus[T], error) {
	ctx, cancel := context.WithCancel(parentCtx)
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		cancel()
		return nil, err
	}

	b := &PgBus[T]{
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		log:      log.With().Str("component", "pgbus").Logger(),
		handlers: make(map[string]map[uint64]func(T)),
	}

	go b.listenLoop()
	return b, nil
}

// pollInterval bounds how long the listener holds the connection, so
// Publish and Subscribe get a turn.
const pollInterval = 200 * time.Millisecond

func (b *PgBus[T]) listenLoop() {
	for {
		b.connMu.Lock()
		waitCtx, cancel := context.WithTimeout(b.ctx, pollInterval)
		notif, err := b.conn.WaitForNotification(waitCtx)
		cancel()
		b.connMu.Unlock()

		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) && !b.conn.IsClosed() {
				continue
			}
			b.log.Error().Err(err).Msg("wait for notification")
			return
		}
		if notif == nil {
			continue
		}

		b.log.Debug().Str("channel", notif.Channel).Msg("notification received")

		var msg T
		if err := json.Unmarshal([]byte(notif.Payload), &msg); err != nil {
			b.log.Error().Err(err).Msg("decode notification payload")
			continue
		}

		b.mu.RLock()
		hs := make([]func(T), 0, len(b.handlers[notif.Channel]))
		for _, h := range b.handlers[notif.Channel] {
			hs = append(hs, h)
		}
		b.mu.RUnlock()

		for _, h := range hs {
			go h(msg)
		}
	}
}

// exec serializes use of the single connection with the listen loop.
func (b *PgBus[T]) exec(sql string, args ...any) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	_, err := b.conn.Exec(b.ctx, sql, args...)
	return err
}

func (b *PgBus[T]) Publish(topic string, msg T) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.log.Error().Err(err).Str("topic", topic).Msg("encode payload")
		return
	}
	if err := b.exec("select pg_notify($1, $2)", topic, string(payload)); err != nil {
		b.log.Error().Err(err).Str("topic", topic).Msg("publish")
	}
}

func (b *PgBus[T]) Subscribe(topic string, h func(T)) Unsubscribe {
	b.mu.Lock()
	if _, ok := b.handlers[topic]; !ok {
		if err := b.exec(fmt.Sprintf("LISTEN %s", pgx.Identifier{topic}.Sanitize())); err != nil {
			b.log.Error().Err(err).Str("topic", topic).Msg("listen")
		}
		b.handlers[topic] = map[uint64]func(T){}
	}
	b.nextID++
	id := b.nextID
	b.handlers[topic][id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[topic], id)
			if len(b.handlers[topic]) == 0 {
				if err := b.exec("UNLISTEN " + pgx.Identifier{topic}.Sanitize()); err != nil {
					b.log.Error().Err(err).Str("topic", topic).Msg("unlisten")
				}
				delete(b.handlers, topic)
			}
		})
	}
}

func (b *PgBus[T]) Close() error {
	b.cancel()
	return b.conn.Close(context.Background())
}
