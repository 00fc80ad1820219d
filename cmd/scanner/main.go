// Command scanner is the CLI surface for the trading core: scan one or
// more tickers, optionally continuously, and optionally save the
// resulting trade plans (spec §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/nse-trader/core/internal/aggregator"
	"github.com/nse-trader/core/internal/autotrader"
	"github.com/nse-trader/core/internal/broker"
	"github.com/nse-trader/core/internal/config"
	"github.com/nse-trader/core/internal/domain"
	"github.com/nse-trader/core/internal/ensemble"
	"github.com/nse-trader/core/internal/executor"
	"github.com/nse-trader/core/internal/features"
	"github.com/nse-trader/core/internal/marketdata"
	"github.com/nse-trader/core/internal/models"
	"github.com/nse-trader/core/internal/persistence"
	"github.com/nse-trader/core/internal/planner"
	"github.com/nse-trader/core/internal/risk"
	"github.com/nse-trader/core/internal/scheduler"
	"github.com/nse-trader/core/internal/strategy"
	"github.com/nse-trader/core/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	tickersFlag := flag.String("tickers", "", "comma-separated list of tickers, e.g. RELIANCE.NS,TCS.NS")
	fileFlag := flag.String("file", "", "path to a newline-delimited ticker file")
	watchlistFlag := flag.String("watchlist", "", "watchlist input; not supported, any value is rejected with an error (use --tickers or --file)")
	continuous := flag.Bool("continuous", false, "run continuously on --interval until interrupted")
	interval := flag.Duration("interval", time.Minute, "polling interval when --continuous is set")
	save := flag.Bool("save", false, "persist generated trade plans")
	noElite := flag.Bool("no-elite", false, "bypass adaptive-elite routing and always use the ml strategy")
	status := flag.Bool("status", false, "print a process health snapshot and exit")
	daemon := flag.Bool("daemon", false, "run the scheduler-driven pre-market/market-hours/post-market loop instead of a one-shot or fixed-interval scan")
	configPath := flag.String("config", "configs/trading_config.yaml", "path to trading_config.yaml")
	flag.Parse()

	if *status {
		printStatus()
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 1
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	tickers, err := resolveTickers(*tickersFlag, *fileFlag, *watchlistFlag)
	if err != nil {
		log.Error().Err(err).Msg("failed to resolve ticker list")
		return 1
	}
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "no tickers given: pass --tickers, --file, or --watchlist")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize")
		return 1
	}
	defer app.journal.Close()

	strategyName := "adaptive_elite"
	if *noElite {
		strategyName = "ml"
	}

	scanAll := func() {
		for _, t := range tickers {
			if _, err := app.scanOne(ctx, t, strategyName, *save); err != nil {
				log.Error().Err(err).Str("ticker", string(t)).Msg("scan failed")
			}
		}
	}

	if *daemon {
		return runDaemon(ctx, app, tickers, strategyName, *save, log)
	}

	if !*continuous {
		scanAll()
		return 0
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	scanAll()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return 130
		case <-ticker.C:
			scanAll()
		}
	}
}

func resolveTickers(tickersFlag, fileFlag, watchlistFlag string) ([]domain.Ticker, error) {
	var out []domain.Ticker
	if tickersFlag != "" {
		for _, t := range strings.Split(tickersFlag, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, domain.Ticker(t))
			}
		}
	}
	if fileFlag != "" {
		data, err := os.ReadFile(fileFlag)
		if err != nil {
			return nil, fmt.Errorf("scanner: read ticker file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, domain.Ticker(line))
			}
		}
	}
	if watchlistFlag != "" {
		return nil, fmt.Errorf("scanner: --watchlist is not yet implemented, use --tickers or --file")
	}
	return out, nil
}

// runDaemon hands control to the cron-driven scheduler: a 09:00 pre-market
// job that resets the day's P&L and begins the workflow, a 09:15-15:30
// market-hours tick that scans every ticker through the AutoTrader's
// skip-on-overlap guard, and a 15:45 post-market job that closes out the
// day's workflow state (spec §4.11). Runs until ctx is cancelled.
func runDaemon(ctx context.Context, app *application, tickers []domain.Ticker, strategyName string, save bool, log zerolog.Logger) int {
	today := func() string { return time.Now().In(app.loc).Format("2006-01-02") }

	preMarket := func(ctx context.Context) error {
		app.workflow.BeginDay(today())
		app.auto.ResetDailyPnL()
		app.workflow.CompletePreMarket()
		return nil
	}

	marketTick := func(ctx context.Context) error {
		if !app.hours.IsMarketOpen(time.Now()) {
			return nil
		}
		app.workflow.BeginMarketHours()
		for _, t := range tickers {
			reason, err := app.auto.RunScan(ctx, t, func(ctx context.Context, ticker domain.Ticker, threshold float64) error {
				_, scanErr := app.scanOne(ctx, ticker, strategyName, save)
				return scanErr
			})
			if err != nil {
				log.Error().Err(err).Str("ticker", string(t)).Msg("scan failed")
			} else if reason != "" {
				log.Debug().Str("ticker", string(t)).Str("reason", reason).Msg("scan skipped")
			}
		}
		return nil
	}

	postMarket := func(ctx context.Context) error {
		app.workflow.CompletePostMarket()
		log.Info().Interface("breaker", app.auto.BreakerState()).Msg("post-market summary")
		return nil
	}

	if err := app.sched.SchedulePreMarket(preMarket); err != nil {
		log.Error().Err(err).Msg("failed to schedule pre-market job")
		return 1
	}
	if err := app.sched.ScheduleMarketHoursTick(marketTick); err != nil {
		log.Error().Err(err).Msg("failed to schedule market-hours tick")
		return 1
	}
	if err := app.sched.SchedulePostMarket(postMarket); err != nil {
		log.Error().Err(err).Msg("failed to schedule post-market job")
		return 1
	}

	app.sched.Start()
	go app.streamQuotes(ctx, tickers)
	<-ctx.Done()
	log.Info().Msg("shutting down")
	app.sched.Stop()
	return 130
}

// streamQuotes subscribes to the broker's live tick feed for tickers and
// folds every tick into the data fabric's last-known-quote cache. The
// streaming feed is optional best-effort infrastructure (spec §4.1): a
// subscribe failure is logged, not fatal, since the fabric's polled
// sources already cover quote delivery on their own.
func (a *application) streamQuotes(ctx context.Context, tickers []domain.Ticker) {
	keys := make([]domain.InstrumentKey, 0, len(tickers))
	for _, t := range tickers {
		key, err := a.instruments.Resolve(t)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return
	}

	out := make(chan domain.StreamTick, 64)
	go func() {
		for tick := range out {
			a.fabric.IngestQuote(tick)
		}
	}()
	if err := a.stream.Subscribe(ctx, keys, out); err != nil {
		a.log.Warn().Err(err).Msg("streaming quote subscription ended")
	}
}

func printStatus() {
	cpuPct, _ := cpu.Percent(0, false)
	vm, _ := mem.VirtualMemory()
	cpuStr := "n/a"
	if len(cpuPct) > 0 {
		cpuStr = fmt.Sprintf("%.1f%%", cpuPct[0])
	}
	fmt.Printf("cpu=%s mem_used=%.1f%%\n", cpuStr, vm.UsedPercent)
}

// application bundles every wired component the scan loop drives, one
// per ticker, through the seven-step pipeline: fetch data, compute
// features, predict, ensemble, generate+filter a signal, plan, execute.
type application struct {
	cfg        *config.Config
	log        zerolog.Logger
	fabric     *marketdata.DataFabric
	instruments *marketdata.InstrumentMaster
	registry   *models.Registry
	ensembleMgr *ensemble.Manager
	agg        *aggregator.Aggregator
	strategies *strategy.Manager
	filter     *strategy.SignalFilter
	plan       *planner.Planner
	riskMgr    *risk.Manager
	exec       *executor.Executor
	auto       *autotrader.AutoTrader
	journal    *persistence.Journal
	sched      *scheduler.Scheduler
	workflow   *scheduler.DailyWorkflow
	hours      *scheduler.MarketHoursManager
	loc        *time.Location
	stream     *broker.StreamClient
}

func wire(cfg *config.Config, log zerolog.Logger) (*application, error) {
	journal, err := persistence.OpenJournal(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	instruments := marketdata.NewInstrumentMaster()
	brokerClient := broker.NewClient("https://broker.example/api", log)
	sources := []marketdata.Source{
		marketdata.NewBrokerSource(brokerClient),
		marketdata.NewExchangeAPISource("https://exchange.example/api"),
		marketdata.NewFallbackHistoricalSource(cfg.DataDir + "/fallback_historical"),
	}
	fabric := marketdata.NewDataFabric(sources, marketdata.NewDiskCache(cfg.DataDir), instruments, log)

	registry := models.NewRegistry(cfg.DataDir)

	rollingAccuracy := func() (float64, int, error) {
		return journal.RollingAccuracy("baseline", time.Now().AddDate(0, 0, -30))
	}
	auto := autotrader.NewAutoTrader(cfg.DataDir, cfg.CircuitBreaker, cfg.Thresholds, rollingAccuracy, log)

	exec := executor.NewExecutor(brokerClient, journal, cfg.DataDir, executor.ModePaper, auto.UpdatePnL, log)

	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.Local
	}
	hours := scheduler.NewMarketHoursManager(loc, cfg.MarketHolidays)

	app := &application{
		cfg:         cfg,
		log:         log,
		fabric:      fabric,
		instruments: instruments,
		registry:    registry,
		ensembleMgr: ensemble.NewManager(cfg.QuantEnsembleMethod),
		agg:         aggregator.NewAggregator(),
		strategies:  strategy.NewManager(),
		filter:      strategy.NewSignalFilter(cfg.Thresholds),
		plan:        planner.NewPlanner(cfg.DataDir, log),
		riskMgr:     risk.NewManager(cfg.Risk),
		exec:        exec,
		auto:        auto,
		journal:     journal,
		sched:       scheduler.NewScheduler(loc, log),
		workflow:    scheduler.NewDailyWorkflow(),
		hours:       hours,
		loc:         loc,
		stream:      broker.NewStreamClient("wss://broker.example/stream", log),
	}
	app.auto.Start()
	return app, nil
}

// scanTimeframes is the set of (Interval, Timeframe) pairs scanOne pulls
// independently before handing them to the MultiTimeframeAggregator; 1h
// speaks for the intraday leg and 1d for the end-of-day leg of an EOD
// consensus call (spec §4.3).
var scanTimeframes = []struct {
	interval  domain.Interval
	timeframe domain.Timeframe
}{
	{domain.Interval1Hour, domain.Timeframe1Hour},
	{domain.Interval1Day, domain.Timeframe1Day},
}

// scanOne runs the full pipeline for one ticker: per-timeframe signal
// generation, multi-timeframe aggregation into a consensus call, planning,
// risk validation, and (optionally) execution. Returns (nil, nil) when the
// consensus is a HOLD or the plan is rejected by the risk manager.
func (a *application) scanOne(ctx context.Context, ticker domain.Ticker, strategyName string, save bool) (*domain.TradePlan, error) {
	signals := make(map[domain.Timeframe]domain.Signal)
	var primaryEntries []models.Entry
	var primaryProbability float64

	for _, tf := range scanTimeframes {
		sig, entries, proba, err := a.signalForTimeframe(ctx, ticker, tf.interval, tf.timeframe, strategyName)
		if err != nil {
			a.log.Warn().Err(err).Str("ticker", string(ticker)).Str("timeframe", string(tf.timeframe)).Msg("timeframe scan failed, skipping")
			continue
		}
		signals[tf.timeframe] = sig
		if tf.timeframe == domain.Timeframe1Day {
			primaryEntries = entries
			primaryProbability = proba
		}
	}
	if len(signals) == 0 {
		return nil, fmt.Errorf("scan: no timeframe produced usable data for %s", ticker)
	}

	consensus, err := a.agg.Aggregate(ticker, signals, aggregator.ContextEndOfDay)
	if err != nil {
		return nil, fmt.Errorf("scan: aggregate timeframes: %w", err)
	}
	if !consensus.ConsensusSignal.IsDirectional() {
		a.log.Info().Str("ticker", string(ticker)).Msg("multi-timeframe consensus is HOLD")
		return nil, nil
	}

	sig := domain.Signal{
		Ticker:      ticker,
		Timeframe:   domain.Timeframe1Day,
		Type:        consensus.ConsensusSignal,
		Probability: consensus.Probability,
		Confidence:  consensus.Confidence,
		Levels:      consensus.Levels,
		Strategy:    "multi_timeframe_consensus:" + strategyName,
		Ts:          consensus.Ts,
	}

	tradePlan, err := a.plan.BuildPlan(sig, domain.Swing, domain.ProductDelivery, 1_000_000, 1, a.cfg.Risk)
	if err != nil {
		return nil, fmt.Errorf("scan: build plan: %w", err)
	}

	verdict := a.riskMgr.ValidateTrade(tradePlan, risk.PortfolioState{AccountEquity: 1_000_000})
	for _, w := range verdict.Warnings {
		a.log.Warn().Str("ticker", string(ticker)).Msg(w)
	}
	if !verdict.Approved {
		a.log.Info().Str("ticker", string(ticker)).Strs("reasons", verdict.Reasons).Msg("plan rejected by risk manager")
		return nil, nil
	}

	if save {
		modelID := "none"
		probability := primaryProbability
		if len(primaryEntries) > 0 {
			modelID = primaryEntries[0].ModelID
		}
		if probability == 0 {
			probability = consensus.Probability
		}
		if _, err := a.exec.ExecuteBuy(tradePlan, modelID, probability); err != nil {
			return nil, fmt.Errorf("scan: execute: %w", err)
		}
	}

	return &tradePlan, nil
}

// signalForTimeframe fetches OHLCV at interval, computes features,
// predicts via every registered model for (ticker, timeframe), combines
// them through the ensemble, generates a strategy signal, and applies the
// regime/trend/volume filter. Returns the registry entries and the raw
// ensemble probability alongside the filtered signal so the caller can
// attribute an executed trade to the model that drove it.
func (a *application) signalForTimeframe(ctx context.Context, ticker domain.Ticker, interval domain.Interval, timeframe domain.Timeframe, strategyName string) (domain.Signal, []models.Entry, float64, error) {
	to := time.Now()
	from := to.Add(-interval.MaxHistory())
	series, err := a.fabric.GetOHLCV(ctx, ticker, interval, from, to)
	if err != nil {
		return domain.Signal{}, nil, 0, fmt.Errorf("fetch ohlcv: %w", err)
	}

	frame, err := features.MakeFeatures(series)
	if err != nil {
		return domain.Signal{}, nil, 0, fmt.Errorf("make features: %w", err)
	}
	clean := features.CleanFrame(frame)
	if len(clean.Rows) == 0 {
		return domain.Signal{}, nil, 0, fmt.Errorf("not enough history for %s after warmup trim", ticker)
	}
	latest := clean.Rows[len(clean.Rows)-1]

	entries, err := a.registry.ForTicker(string(ticker), string(timeframe))
	if err != nil {
		return domain.Signal{}, nil, 0, fmt.Errorf("load registry: %w", err)
	}

	var members []ensemble.WeightedMember
	for _, entry := range entries {
		predictor := models.NewBaselineLogistic(0, 0)
		if err := predictor.Load(entry.Path); err != nil {
			a.log.Warn().Err(err).Str("model_id", entry.ModelID).Msg("failed to load model, skipping")
			continue
		}
		proba, err := predictor.PredictProba(featureVector(latest))
		if err != nil {
			continue
		}
		members = append(members, ensemble.WeightedMember{
			Prediction: domain.Prediction{ModelID: entry.ModelID, Probability: proba, Ts: time.Now().UTC()},
			Entry:      entry,
		})
	}
	if len(members) == 0 {
		// No trained model yet for this (ticker, timeframe): a neutral
		// 0.5 prediction from an unweighted synthetic member lets the
		// rule-based strategies (mean_reversion, momentum) still run.
		members = append(members, ensemble.WeightedMember{
			Prediction: domain.Prediction{ModelID: "none", Probability: 0.5, Ts: time.Now().UTC()},
			Entry:      models.Entry{ModelID: "none"},
		})
	}
	ensembleResult, err := a.ensembleMgr.Combine(members)
	if err != nil {
		return domain.Signal{}, nil, 0, fmt.Errorf("combine ensemble: %w", err)
	}

	regime := strategy.DetectRegime(clean.Bars)
	phase := strategy.ClassifyPhase(clean.Bars)

	sig, err := a.strategies.Generate(strategyName, strategy.Input{
		Ticker: ticker, Timeframe: timeframe, Bars: clean.Bars, Features: latest,
		EnsembleProbability: ensembleResult.Probability, EnsembleConfidence: ensembleResult.Confidence, Regime: regime,
	})
	if err != nil {
		return domain.Signal{}, nil, 0, fmt.Errorf("generate signal: %w", err)
	}
	sig = a.filter.Apply(sig, phase, latest)

	return sig, entries, ensembleResult.Probability, nil
}

func featureVector(row domain.FeatureRow) []float64 {
	keys := []string{"return_1d", "rsi_14", "macd_hist", "adx_14", "atr_pct", "bb_width", "volume_ratio"}
	x := make([]float64, len(keys))
	for i, k := range keys {
		x[i] = row[k]
	}
	return x
}
