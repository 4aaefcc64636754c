package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/tradebot/feed"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/strategies"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultPollEvery paces bar polling when BotConfig leaves it zero.
	DefaultPollEvery = time.Minute
	// DefaultWindow is the number of bars a policy sees.
	DefaultWindow = 500
)

// State is the lifecycle state of a bot.
type State string

const (
	Running State = "running"
	Paused  State = "paused"
	Stopped State = "stopped"
	Failed  State = "failed"
)

// BotConfig describes one live strategy instance.
type BotConfig struct {
	Strategy strategies.Config
	Source   feed.Provider
	// Gateway defaults to a PaperGateway with backtest defaults.
	Gateway   Gateway
	PollEvery time.Duration
	Window    int
}

// Status is a snapshot of a bot.
type Status struct {
	ID        string    `json:"id"`
	Strategy  string    `json:"strategy"`
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at"`
	LastBar   time.Time `json:"last_bar,omitempty"`
	Seeded    int       `json:"seeded"`
	Bars      int       `json:"bars"`
	Trades    int       `json:"trades"`
	Cash      float64   `json:"cash"`
	Position  float64   `json:"position"`
	LastError string    `json:"last_error,omitempty"`
}

type command int

const (
	cmdPause command = iota
	cmdResume
	cmdStop
)

// Bot runs one policy in its own goroutine. It is controlled only through
// commands sent by its Registry.
type Bot struct {
	id      string
	cfg     BotConfig
	policy  strategies.Policy
	gw      Gateway
	limiter *rate.Limiter
	log     *zap.Logger

	cmds chan command
	done chan struct{}

	// owned by the run goroutine
	window []market.Bar
	last   time.Time
	seeded bool

	mu     sync.Mutex
	status Status
	trades []market.TradeRecord
}

func newBot(botID string, cfg BotConfig, policy strategies.Policy, log *zap.Logger) *Bot {
	return &Bot{
		id:      botID,
		cfg:     cfg,
		policy:  policy,
		gw:      cfg.Gateway,
		limiter: rate.NewLimiter(rate.Every(cfg.PollEvery), 1),
		log:     log,
		cmds:    make(chan command),
		done:    make(chan struct{}),
		status: Status{
			ID:        botID,
			Strategy:  policy.Name(),
			Symbol:    cfg.Strategy.Symbol,
			Interval:  cfg.Strategy.Interval,
			State:     Running,
			StartedAt: time.Now().UTC(),
		},
	}
}

// send delivers c unless the bot has already exited.
func (b *Bot) send(c command) error {
	select {
	case b.cmds <- c:
		return nil
	case <-b.done:
		return fmt.Errorf("bot %s: already exited", b.id)
	}
}

func (b *Bot) run(ctx context.Context) {
	defer close(b.done)
	defer func() {
		if p := recover(); p != nil {
			b.fail(fmt.Errorf("panic: %v", p))
		}
	}()

	paused := false
	for {
		r := b.limiter.Reserve()
		timer := time.NewTimer(r.Delay())

		select {
		case <-ctx.Done():
			timer.Stop()
			r.Cancel()
			b.setState(Stopped)
			return
		case c := <-b.cmds:
			timer.Stop()
			r.Cancel()
			switch c {
			case cmdPause:
				paused = true
				b.setState(Paused)
			case cmdResume:
				paused = false
				b.setState(Running)
			case cmdStop:
				b.setState(Stopped)
				return
			}
			continue
		case <-timer.C:
		}

		if paused {
			continue
		}
		if err := b.poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.log.Warn("poll failed", zap.Error(err))
			b.setError(err)
		}
	}
}

// poll fetches bars newer than the last one seen and processes them in
// order. The first bars a bot receives are history: they fill the window
// and run Init but never reach Decide.
func (b *Bot) poll(ctx context.Context) error {
	req := feed.Request{Symbol: b.cfg.Strategy.Symbol, Interval: b.cfg.Strategy.Interval}
	if b.seeded {
		req.Start = b.last.Add(time.Nanosecond)
	}
	bars, err := b.cfg.Source.Bars(ctx, req)
	if errors.Is(err, feed.ErrNoData) {
		return nil
	}
	if err != nil {
		return err
	}
	if !b.seeded {
		return b.seed(ctx, bars)
	}

	for _, bar := range bars {
		if !bar.Time.After(b.last) {
			continue
		}
		if err := b.onBar(ctx, bar); err != nil {
			return err
		}
	}
	return nil
}

// seed keeps the newest Window bars as history and initializes the policy
// against the latest of them.
func (b *Bot) seed(ctx context.Context, bars []market.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	if n := len(bars); n > b.cfg.Window {
		bars = bars[n-b.cfg.Window:]
	}
	b.window = append([]market.Bar(nil), bars...)
	latest := bars[len(bars)-1]
	b.last = latest.Time
	b.seeded = true

	if in, ok := b.policy.(strategies.Initializer); ok {
		view, err := b.gw.Account(ctx)
		if err != nil {
			return err
		}
		ds, err := in.Init(latest, view)
		if err != nil {
			return err
		}
		for _, d := range ds {
			if err := b.place(ctx, d, latest); err != nil {
				return err
			}
		}
	}

	view, err := b.gw.Account(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.status.LastBar = latest.Time
	b.status.Seeded = len(bars)
	b.status.Cash = view.Cash
	b.status.Position = view.Position
	b.mu.Unlock()
	b.log.Info("history seeded", zap.Int("bars", len(bars)), zap.Time("last", latest.Time))
	return nil
}

func (b *Bot) onBar(ctx context.Context, bar market.Bar) error {
	b.last = bar.Time
	b.window = append(b.window, bar)
	if n := len(b.window); n > b.cfg.Window {
		b.window = append([]market.Bar(nil), b.window[n-b.cfg.Window:]...)
	}

	execs, err := b.gw.Sync(ctx, bar)
	if err != nil {
		return err
	}
	if err := b.handle(ctx, execs, bar); err != nil {
		return err
	}

	view, err := b.gw.Account(ctx)
	if err != nil {
		return err
	}
	d, err := b.policy.Decide(b.window[:len(b.window):len(b.window)], view)
	if err != nil {
		return err
	}
	if d != nil {
		if err := b.place(ctx, *d, bar); err != nil {
			return err
		}
	}

	view, err = b.gw.Account(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.status.LastBar = bar.Time
	b.status.Bars++
	b.status.Cash = view.Cash
	b.status.Position = view.Position
	b.mu.Unlock()
	return nil
}

// place submits d. A rejection is reported to the policy and logged, not
// treated as a bot failure.
func (b *Bot) place(ctx context.Context, d strategies.Decision, bar market.Bar) error {
	execs, err := b.gw.Place(ctx, d, bar)
	if errors.Is(err, ErrRejected) {
		b.log.Info("order rejected", zap.String("side", string(d.Side)), zap.Error(err))
		if c, ok := b.policy.(strategies.CancelObserver); ok {
			c.OnCancel(d)
		}
		return nil
	}
	if err != nil {
		return err
	}
	return b.handle(ctx, execs, bar)
}

func (b *Bot) handle(ctx context.Context, execs []Execution, bar market.Bar) error {
	obs, _ := b.policy.(strategies.FillObserver)
	for _, ex := range execs {
		f := ex.Fill
		b.mu.Lock()
		b.trades = append(b.trades, market.TradeRecord{
			ID:            ex.OrderID,
			OrderID:       ex.OrderID,
			Time:          ex.Time,
			Side:          ex.Decision.Side,
			Type:          ex.Decision.Type,
			Price:         f.Price,
			Quantity:      f.Quantity,
			Notional:      f.Notional,
			Commission:    f.Commission,
			AvgEntryPrice: f.AvgEntryPrice,
			CashAfter:     f.CashAfter,
			PositionAfter: f.PositionAfter,
			Reason:        ex.Decision.Reason,
			RealizedPnL:   f.RealizedPnL,
		})
		b.status.Trades = len(b.trades)
		b.mu.Unlock()

		b.log.Info("order filled",
			zap.String("side", string(ex.Decision.Side)),
			zap.Float64("price", f.Price), zap.Float64("qty", f.Quantity))

		if obs == nil {
			continue
		}
		next := obs.OnFill(strategies.FillEvent{
			Decision:   ex.Decision,
			Time:       ex.Time,
			Price:      f.Price,
			Quantity:   f.Quantity,
			Notional:   f.Notional,
			Commission: f.Commission,
		})
		for _, d := range next {
			if err := b.place(ctx, d, bar); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Bot) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status.State != Failed {
		b.status.State = s
	}
}

func (b *Bot) setError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.LastError = err.Error()
}

func (b *Bot) fail(err error) {
	b.log.Error("bot failed", zap.Error(err))
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.State = Failed
	b.status.LastError = err.Error()
}

// Status returns a snapshot of the bot.
func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Trades returns a copy of the bot's fills.
func (b *Bot) Trades() []market.TradeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]market.TradeRecord(nil), b.trades...)
}
