// Command backtest runs a single simulation from a strategy config file and
// per-symbol CSV bar files, then prints the performance report.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/analyzer"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/config"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/engine"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/infrastructure"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/model"
)

func main() {
	var (
		configPath = flag.String("config", "configs/strategy.json", "strategy configuration file")
		dataDir    = flag.String("data", "data", "directory of <SYMBOL>.csv bar files")
		logLevel   = flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	infrastructure.Init(*logLevel)
	logger := infrastructure.Logger
	defer logger.Sync()

	cfg, err := config.LoadStrategyConfig(*configPath)
	if err != nil {
		log.Fatalf("load strategy config: %v", err)
	}

	data := make(map[string][]model.Bar, len(cfg.Markets))
	for _, symbol := range cfg.Markets {
		path := filepath.Join(*dataDir, symbol+".csv")
		bars, err := engine.LoadBarsCSV(path, symbol)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn("no data file for market, skipping",
					zap.String("symbol", symbol), zap.String("path", path))
				continue
			}
			log.Fatalf("load bars for %s: %v", symbol, err)
		}
		data[symbol] = bars
	}

	sim := engine.NewSimulator(cfg, logger)
	result, err := sim.Run(context.Background(), data)
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	report := analyzer.Analyze(result, cfg.RiskFreeRateAnnual)
	if err := report.WriteText(os.Stdout); err != nil {
		log.Fatalf("write report: %v", err)
	}
}
