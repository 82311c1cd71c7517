package feed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"fraud-stream-dashboard/internal/domain/entity"
	"fraud-stream-dashboard/internal/infrastructure/config"
	"fraud-stream-dashboard/internal/infrastructure/logger"
)

const featureCount = 28

// TransactionSource supplies the transactions the feed server scores and
// broadcasts. The built-in simulator and the NATS source both implement it.
type TransactionSource interface {
	// Start begins producing transactions
	Start(ctx context.Context) error

	// Transactions returns the channel transactions are delivered on
	Transactions() <-chan *entity.Transaction

	// Stop stops the source and closes the channel
	Stop() error
}

// Simulator generates random credit-card style transactions on a fixed
// interval. Roughly FraudRate of them are skewed to look fraudulent.
type Simulator struct {
	interval  time.Duration
	fraudRate float64
	rng       *rand.Rand
	logger    *logger.Logger
	out       chan *entity.Transaction
	cancel    context.CancelFunc
}

// NewSimulator creates a transaction simulator
func NewSimulator(cfg *config.FeedConfig, log *logger.Logger) *Simulator {
	return &Simulator{
		interval:  cfg.EmitInterval,
		fraudRate: cfg.FraudRate,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:    log.WithComponent("simulator"),
		out:       make(chan *entity.Transaction),
	}
}

// Start begins producing transactions
func (s *Simulator) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	s.logger.Info("Simulator started")
	return nil
}

func (s *Simulator) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(s.out)
			return
		case <-ticker.C:
			select {
			case s.out <- s.Generate():
			case <-ctx.Done():
				close(s.out)
				return
			}
		}
	}
}

// Transactions returns the channel transactions are delivered on
func (s *Simulator) Transactions() <-chan *entity.Transaction {
	return s.out
}

// Stop stops the source and closes the channel
func (s *Simulator) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("Simulator stopped")
	return nil
}

// Generate builds one random transaction: an opaque id, a time offset within
// two days, an amount between 1 and 5000, and 28 feature columns. A fraudRate
// fraction gets V1, V3 and Amount pushed into the ranges the scorer flags.
func (s *Simulator) Generate() *entity.Transaction {
	timeOffset := float64(s.rng.Intn(172800))
	amount := round2(1.0 + s.rng.Float64()*4999.0)

	features := make(map[string]float64, featureCount)
	for i := 1; i <= featureCount; i++ {
		features[fmt.Sprintf("V%d", i)] = round6(-10 + s.rng.Float64()*20)
	}

	if s.rng.Float64() < s.fraudRate {
		features["V1"] = round6(-20 + s.rng.Float64()*15)
		features["V3"] = round6(-15 + s.rng.Float64()*13)
		amount = round2(500 + s.rng.Float64()*4500)
	}

	return &entity.Transaction{
		TransactionID: fmt.Sprintf("tx-%d", 10000+s.rng.Intn(90000)),
		Time:          &timeOffset,
		Amount:        &amount,
		Features:      features,
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func round6(v float64) float64 {
	if v < 0 {
		return float64(int64(v*1e6-0.5)) / 1e6
	}
	return float64(int64(v*1e6+0.5)) / 1e6
}
