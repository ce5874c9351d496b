// Package application wires the risk core into a single cooperative,
// cycle-driven engine: one evaluation pass per scheduling tick. Within a
// cycle, exit closes are recorded in the ledger before any sizing
// decision reads headroom from it.
package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/optiondesk/internal/config"
	"github.com/sawpanic/optiondesk/internal/domain/correlation"
	"github.com/sawpanic/optiondesk/internal/domain/regime"
	"github.com/sawpanic/optiondesk/internal/domain/risk"
	"github.com/sawpanic/optiondesk/internal/domain/sizing"
	"github.com/sawpanic/optiondesk/internal/domain/tier"
	"github.com/sawpanic/optiondesk/internal/exits"
	"github.com/sawpanic/optiondesk/internal/metrics"
	"github.com/sawpanic/optiondesk/internal/persistence"
	"github.com/sawpanic/optiondesk/internal/positions"
	"github.com/sawpanic/optiondesk/internal/providers"
)

// Deps are the external collaborators injected into the engine. Metrics
// and Snapshots are optional.
type Deps struct {
	Market    providers.MarketDataProvider
	Account   providers.AccountInfoProvider
	Index     providers.VolatilityIndexProvider
	Gateway   providers.ExecutionGateway
	Metrics   *metrics.Registry
	Snapshots persistence.SnapshotRepo
}

// Engine owns one instance of each core component and runs the cycle.
// Single-threaded and cooperative: no component spawns workers.
type Engine struct {
	cfg config.Config

	classifier *regime.Classifier
	history    *regime.History
	gate       *tier.Gate
	ledger     *correlation.Ledger
	sizer      *sizing.Sizer
	registry   *positions.Registry
	exiter     *exits.Evaluator

	market    providers.MarketDataProvider
	account   providers.AccountInfoProvider
	index     providers.VolatilityIndexProvider
	gateway   providers.ExecutionGateway
	metrics   *metrics.Registry
	snapshots persistence.SnapshotRepo

	lastRegime  *regime.Regime
	lastAccount *providers.AccountSummary
	peakValue   float64
}

// New validates the configuration tables by constructing every
// component; an inconsistent table fails here, at startup.
func New(cfg config.Config, deps Deps) (*Engine, error) {
	classifier, err := regime.NewClassifier(cfg.Regimes)
	if err != nil {
		return nil, err
	}
	gate, err := tier.NewGate(cfg.Tiers)
	if err != nil {
		return nil, err
	}
	ledger, err := correlation.NewLedger(cfg.Correlation)
	if err != nil {
		return nil, err
	}

	registry := positions.NewRegistry(cfg.RequiredRoles(), positions.WithLedger(ledger))
	exiter := exits.NewEvaluator(cfg.ExitRules(), cfg.Defensive)

	return &Engine{
		cfg:        cfg,
		classifier: classifier,
		history:    regime.NewHistory(cfg.Engine.HistoryDepth),
		gate:       gate,
		ledger:     ledger,
		sizer:      sizing.NewSizer(cfg.Sizing),
		registry:   registry,
		exiter:     exiter,
		market:     deps.Market,
		account:    deps.Account,
		index:      deps.Index,
		gateway:    deps.Gateway,
		metrics:    deps.Metrics,
		snapshots:  deps.Snapshots,
	}, nil
}

// Registry exposes the position registry.
func (e *Engine) Registry() *positions.Registry { return e.registry }

// Ledger exposes the correlation ledger.
func (e *Engine) Ledger() *correlation.Ledger { return e.ledger }

// ExitTally returns the confirmed exit-reason counts.
func (e *Engine) ExitTally() map[exits.Reason]int { return e.exiter.Tally() }

// Restore loads the latest persisted snapshot into the registry and
// reseeds correlation counts from the restored open positions. A
// missing snapshot is a clean start, not an error.
func (e *Engine) Restore(ctx context.Context) error {
	if e.snapshots == nil {
		return nil
	}
	snap, err := e.snapshots.Latest(ctx)
	if errors.Is(err, persistence.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := e.registry.Restore(snap); err != nil {
		return fmt.Errorf("restore registry: %w", err)
	}
	e.registry.ReseedLedger()
	log.Info().Int("positions", len(snap.Positions)).Time("taken_at", snap.TakenAt).Msg("registry restored from snapshot")
	return nil
}

// CycleReport summarizes one evaluation pass.
type CycleReport struct {
	StartedAt       time.Time          `json:"started_at"`
	Regime          string             `json:"regime"`
	RegimeDegraded  bool               `json:"regime_degraded"`
	AccountDegraded bool               `json:"account_degraded"`
	Tier            string             `json:"tier,omitempty"`
	TierTransition  *tier.Transition   `json:"tier_transition,omitempty"`
	Remediations    []tier.Remediation `json:"remediations,omitempty"`
	Evaluated       int                `json:"evaluated"`
	Exits           []exits.Signal     `json:"exits,omitempty"`
	Failures        []string           `json:"failures,omitempty"`
	SnapshotID      int64              `json:"snapshot_id,omitempty"`
}

// RunCycle performs one evaluation pass: classify the regime, observe
// the tier, evaluate exits in priority order, record confirmed closes,
// then persist a snapshot. Data outages degrade to conservative
// behavior and are reported, never absorbed.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	started := time.Now()
	report := CycleReport{StartedAt: started.UTC()}

	current := e.observeRegime(ctx, &report)

	summary := e.observeAccount(ctx, &report)

	e.evaluateExits(ctx, current, summary, &report)

	e.persistSnapshot(ctx, &report)

	if e.metrics != nil {
		e.metrics.OpenPositions.Set(float64(len(e.registry.Open())))
		e.metrics.CycleDuration.Observe(time.Since(started).Seconds())
	}
	return report, nil
}

// observeRegime classifies the current index reading, falling back to
// the most conservative regime on a data outage.
func (e *Engine) observeRegime(ctx context.Context, report *CycleReport) regime.Regime {
	var current regime.Regime
	value, err := e.index.Read(ctx)
	if err == nil {
		current, err = e.classifier.Classify(value)
	}
	if err != nil {
		current = e.classifier.Fallback()
		report.RegimeDegraded = true
		log.Warn().Err(err).Str("fallback", current.Name).Msg("index unavailable, using most conservative regime")
		if e.metrics != nil {
			e.metrics.DataOutages.Inc()
		}
	} else {
		e.history.Push(regime.Sample{Value: value, Name: current.Name, At: time.Now().UTC()})
	}

	if e.lastRegime != nil && e.lastRegime.Name != current.Name {
		log.Info().Str("from", e.lastRegime.Name).Str("to", current.Name).Msg("regime switch")
		if e.metrics != nil {
			e.metrics.RegimeSwitches.WithLabelValues(e.lastRegime.Name, current.Name).Inc()
		}
	}
	e.lastRegime = &current
	report.Regime = current.Name

	if e.metrics != nil {
		names := make([]string, 0)
		for _, b := range e.classifier.Bands() {
			names = append(names, b.Name)
		}
		e.metrics.SetActiveRegime(current.Name, names)
	}
	return current
}

// observeAccount reads account state, tracks drawdown, and surfaces
// tier transitions with their remediation reports.
func (e *Engine) observeAccount(ctx context.Context, report *CycleReport) *providers.AccountSummary {
	summary, err := e.account.Read(ctx)
	if err != nil {
		report.AccountDegraded = true
		log.Warn().Err(err).Msg("account unavailable, tier and drawdown checks skipped this cycle")
		return e.lastAccount
	}
	e.lastAccount = &summary

	if summary.TotalValue > e.peakValue {
		e.peakValue = summary.TotalValue
	}

	t, transition, err := e.gate.Observe(summary.TotalValue)
	if err != nil {
		report.AccountDegraded = true
		return &summary
	}
	report.Tier = t.Name

	if transition != nil {
		report.TierTransition = transition
		log.Info().Str("from", transition.Old.Name).Str("to", transition.New.Name).
			Str("direction", string(transition.Direction)).Msg("tier transition")
		if e.metrics != nil {
			e.metrics.TierTransitions.WithLabelValues(string(transition.Direction)).Inc()
		}
		if transition.Direction == tier.Downgrade {
			report.Remediations = e.gate.Remediations(t, e.portfolioView(summary.TotalValue))
			for _, rem := range report.Remediations {
				log.Warn().Str("kind", string(rem.Kind)).Str("position", rem.PositionID).Msg(rem.Detail)
			}
		}
	}
	return &summary
}

// portfolioView snapshots the open book for downgrade remediation.
func (e *Engine) portfolioView(accountValue float64) tier.PortfolioView {
	view := tier.PortfolioView{
		RiskFraction: make(map[string]float64),
		Strategy:     make(map[string]string),
	}
	for _, p := range e.registry.Open() {
		if len(p.OpenLegs()) == 0 {
			continue
		}
		view.OpenPositions++
		view.Strategy[p.ID] = p.Strategy
		if accountValue > 0 {
			view.RiskFraction[p.ID] = p.EntryBasis() / accountValue
		}
	}
	return view
}

// evaluateExits runs the prioritized exit checks on every open position
// and executes at most one close per position through the gateway.
// Registry and ledger state move only after a confirmed fill.
func (e *Engine) evaluateExits(ctx context.Context, current regime.Regime, summary *providers.AccountSummary, report *CycleReport) {
	now := time.Now().UTC()

	indexLevel, indexErr := e.index.Read(ctx)
	indexAvailable := indexErr == nil

	var drawdown float64
	if summary != nil && e.peakValue > 0 {
		drawdown = (e.peakValue - summary.TotalValue) / e.peakValue
	}

	for _, p := range e.registry.Open() {
		if len(p.OpenLegs()) == 0 {
			continue
		}
		report.Evaluated++

		marks := e.refreshMarks(ctx, &p, report)

		underlying := 0.0
		if q, err := e.market.Read(ctx, p.Symbol); err == nil {
			underlying = q.Price
		} else {
			log.Warn().Err(err).Str("symbol", p.Symbol).Msg("underlying quote unavailable, assignment check skipped")
		}

		fresh, _ := e.registry.Get(p.ID)
		in := exits.Inputs{
			PositionID:      fresh.ID,
			Strategy:        fresh.Strategy,
			PnL:             fresh.PnL(),
			EntryBasis:      fresh.EntryBasis(),
			DaysToExpiry:    fresh.MinDTE(now),
			HeldDays:        int(now.Sub(fresh.OpenedAt).Hours() / 24),
			ShortLegs:       shortLegs(&fresh),
			UnderlyingPrice: underlying,
			IndexLevel:      indexLevel,
			IndexAvailable:  indexAvailable,
			DrawdownPct:     drawdown,
			Now:             now,
		}

		sig := e.exiter.Evaluate(in)
		if sig == nil {
			continue
		}

		result, err := e.gateway.Close(ctx, sig.PositionID, sig.Reason.String())
		if err != nil || !result.Success {
			detail := result.FillDetail
			if err != nil {
				detail = err.Error()
			}
			report.Failures = append(report.Failures,
				fmt.Sprintf("close %s (%s) failed: %s", sig.PositionID, sig.Reason, detail))
			log.Error().Str("position", sig.PositionID).Str("reason", sig.Reason.String()).
				Str("detail", detail).Msg("close not confirmed, state unchanged")
			continue
		}

		prices := result.FillPrices
		if prices == nil {
			prices = marks
		}
		e.registry.ClosePosition(sig.PositionID, prices, now)
		e.exiter.Confirm(sig)
		report.Exits = append(report.Exits, *sig)
		if e.metrics != nil {
			e.metrics.ExitSignals.WithLabelValues(sig.Reason.String()).Inc()
		}
		log.Info().Str("position", sig.PositionID).Str("reason", sig.Reason.String()).Msg(sig.Detail)
	}
}

// refreshMarks re-reads every open leg's contract and updates the
// registry marks. A failed read keeps the previous mark.
func (e *Engine) refreshMarks(ctx context.Context, p *positions.Position, report *CycleReport) map[string]float64 {
	marks := make(map[string]float64)
	for _, l := range p.OpenLegs() {
		q, err := e.market.Read(ctx, l.Contract)
		if err != nil {
			log.Warn().Err(err).Str("contract", l.Contract).Msg("leg mark unavailable, keeping previous")
			marks[l.Contract] = l.LatestPrice
			continue
		}
		marks[l.Contract] = q.Price
	}
	if err := e.registry.UpdateMarks(p.ID, marks); err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("update marks %s: %v", p.ID, err))
	}
	return marks
}

func shortLegs(p *positions.Position) []exits.ShortLeg {
	var out []exits.ShortLeg
	for _, l := range p.OpenLegs() {
		if !l.Short() || (l.Right != positions.RightPut && l.Right != positions.RightCall) {
			continue
		}
		out = append(out, exits.ShortLeg{Contract: l.Contract, Right: string(l.Right), Strike: l.Strike})
	}
	return out
}

// persistSnapshot stores the registry image when a repo is configured.
func (e *Engine) persistSnapshot(ctx context.Context, report *CycleReport) {
	if e.snapshots == nil {
		return
	}
	id, err := e.snapshots.Save(ctx, e.registry.Snapshot(time.Now()))
	if err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("snapshot: %v", err))
		log.Error().Err(err).Msg("snapshot save failed")
		return
	}
	report.SnapshotID = id
	if keep := e.cfg.Engine.SnapshotKeep; keep > 0 {
		if _, err := e.snapshots.Prune(ctx, keep); err != nil {
			log.Warn().Err(err).Msg("snapshot prune failed")
		}
	}
}

// SizeTrade computes the admissible size for a new trade against live
// regime, tier and correlation state. An infeasible decision is a
// legitimate outcome, not an error.
func (e *Engine) SizeTrade(ctx context.Context, strategy, symbol string, relaxRegime bool) (sizing.Decision, error) {
	stratCfg, ok := e.cfg.Strategies[strategy]
	if !ok {
		return sizing.Decision{}, fmt.Errorf("unknown strategy %q", strategy)
	}

	current := e.currentRegime(ctx)

	summary, err := e.account.Read(ctx)
	if err != nil {
		if e.lastAccount == nil {
			return sizing.Decision{}, fmt.Errorf("account reading required for sizing: %w", risk.ErrDataUnavailable)
		}
		summary = *e.lastAccount
	} else {
		e.lastAccount = &summary
	}

	t, err := e.gate.SelectTier(summary.TotalValue)
	if err != nil {
		return sizing.Decision{}, err
	}

	if !e.gate.IsStrategyAllowed(t, strategy) {
		return sizing.Decision{
			Strategy:   strategy,
			Symbol:     symbol,
			Infeasible: true,
			Reason:     fmt.Sprintf("strategy %q not allowed in tier %q", strategy, t.Name),
		}, nil
	}

	stressed := current.Stress

	open := 0
	for _, p := range e.registry.Open() {
		if len(p.OpenLegs()) > 0 {
			open++
		}
	}

	corrHeadroom := e.ledger.Headroom(symbol, stressed)
	if corrHeadroom > math.MaxInt32 {
		corrHeadroom = math.MaxInt32
	}

	decision := e.sizer.Size(sizing.Request{
		Strategy:            strategy,
		Symbol:              symbol,
		AccountValue:        summary.TotalValue,
		BPPerUnit:           stratCfg.BPPerUnit,
		Stats:               stratCfg.Stats,
		Regime:              current,
		TierHeadroom:        t.MaxPositions - open,
		CorrelationHeadroom: corrHeadroom,
		RelaxRegime:         relaxRegime && stressed,
	})

	if e.metrics != nil {
		feasible := "true"
		if decision.Infeasible {
			feasible = "false"
		}
		e.metrics.SizingDecisions.WithLabelValues(strategy, string(decision.Binding), feasible).Inc()
	}
	return decision, nil
}

// currentRegime reads the index and classifies, degrading to the
// conservative fallback on a data outage.
func (e *Engine) currentRegime(ctx context.Context) regime.Regime {
	value, err := e.index.Read(ctx)
	if err == nil {
		if r, cerr := e.classifier.Classify(value); cerr == nil {
			e.lastRegime = &r
			return r
		}
	}
	fb := e.classifier.Fallback()
	if e.metrics != nil {
		e.metrics.DataOutages.Inc()
	}
	log.Warn().Err(err).Str("fallback", fb.Name).Msg("index unavailable for sizing, using most conservative regime")
	return fb
}
