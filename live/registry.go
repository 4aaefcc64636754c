// Package live supervises strategy policies running against polled market
// data. Each bot owns a goroutine and is controlled by messages from the
// Registry that started it.
package live

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rustyeddy/tradebot/backtest"
	"github.com/rustyeddy/tradebot/internal/logging"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/sim"
	"github.com/rustyeddy/tradebot/strategies"
	"go.uber.org/zap"
)

var (
	ErrUnknownBot = errors.New("unknown bot")
	ErrClosed     = errors.New("registry is shut down")
)

// Registry owns the running bots. Create one with NewRegistry and release
// it with Shutdown.
type Registry struct {
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	bots   map[string]*Bot
	closed bool
}

func NewRegistry(log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		log:    logging.OrNop(log),
		ctx:    ctx,
		cancel: cancel,
		bots:   make(map[string]*Bot),
	}
}

// Start validates cfg, launches a bot and returns its ID.
func (r *Registry) Start(cfg BotConfig) (string, error) {
	if cfg.Source == nil {
		return "", fmt.Errorf("start: no bar source")
	}
	policy, err := strategies.New(cfg.Strategy)
	if err != nil {
		return "", fmt.Errorf("start: %w", err)
	}
	if cfg.Gateway == nil {
		cfg.Gateway = NewPaperGateway(backtest.DefaultInitialCapital, sim.DefaultCommission)
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = DefaultPollEvery
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrClosed
	}

	botID := uuid.NewString()
	log := r.log.With(
		zap.String("bot", botID),
		zap.String("strategy", policy.Name()),
		zap.String("symbol", cfg.Strategy.Symbol))
	b := newBot(botID, cfg, policy, log)
	r.bots[botID] = b

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		b.run(r.ctx)
	}()
	log.Info("bot started")
	return botID, nil
}

func (r *Registry) get(botID string) (*Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bots[botID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", botID, ErrUnknownBot)
	}
	return b, nil
}

// Pause stops polling without discarding the bot's state.
func (r *Registry) Pause(botID string) error {
	b, err := r.get(botID)
	if err != nil {
		return err
	}
	return b.send(cmdPause)
}

func (r *Registry) Resume(botID string) error {
	b, err := r.get(botID)
	if err != nil {
		return err
	}
	return b.send(cmdResume)
}

// Stop ends the bot, waits for its goroutine and removes it. The final
// status is returned.
func (r *Registry) Stop(botID string) (Status, error) {
	b, err := r.get(botID)
	if err != nil {
		return Status{}, err
	}
	_ = b.send(cmdStop)
	<-b.done

	r.mu.Lock()
	delete(r.bots, botID)
	r.mu.Unlock()

	b.log.Info("bot stopped")
	return b.Status(), nil
}

func (r *Registry) Status(botID string) (Status, error) {
	b, err := r.get(botID)
	if err != nil {
		return Status{}, err
	}
	return b.Status(), nil
}

func (r *Registry) Trades(botID string) ([]market.TradeRecord, error) {
	b, err := r.get(botID)
	if err != nil {
		return nil, err
	}
	return b.Trades(), nil
}

// List returns every bot's status, oldest first.
func (r *Registry) List() []Status {
	r.mu.Lock()
	out := make([]Status, 0, len(r.bots))
	for _, b := range r.bots {
		out = append(out, b.Status())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Shutdown stops every bot and waits for them until ctx ends. Start fails
// afterwards.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("registry shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
