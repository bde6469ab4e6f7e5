package database

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

// Models

// AgentBalance is the bankroll record for one agent. Balance mutations go
// through DebitForBet/SaveBalance only; CurrentBalance is cash on hand, not
// net worth (open positions are valued by callers).
type AgentBalance struct {
	AgentID        string          `gorm:"primaryKey"`
	AgentName      string
	CurrentBalance decimal.Decimal `gorm:"type:decimal(20,6)"`
	InitialBalance decimal.Decimal `gorm:"type:decimal(20,6)"`
	TotalWagered   decimal.Decimal `gorm:"type:decimal(20,6)"`
	TotalWinnings  decimal.Decimal `gorm:"type:decimal(20,6)"`
	TotalLosses    decimal.Decimal `gorm:"type:decimal(20,6)"`

	PredictionCount int
	WinCount        int
	LossCount       int
	WinRate         decimal.Decimal `gorm:"type:decimal(10,4)"` // percent
	ROI             decimal.Decimal `gorm:"type:decimal(10,4)"` // percent
	BiggestWin      decimal.Decimal `gorm:"type:decimal(20,6)"`
	BiggestLoss     decimal.Decimal `gorm:"type:decimal(20,6)"`
	CurrentStreak   int             // positive = consecutive wins, negative = losses

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AgentPrediction is a single bet. Lifecycle: OPEN -> CLOSED_MANUAL or
// CLOSED_RESOLVED, both terminal.
type AgentPrediction struct {
	ID             string `gorm:"primaryKey"`
	AgentID        string `gorm:"index"`
	AgentName      string
	MarketID       string `gorm:"index"`
	MarketQuestion string

	Prediction   string  // "YES" or "NO"
	Confidence   float64 // 0..1
	Reasoning    string
	ResearchCost decimal.Decimal `gorm:"type:decimal(20,6)"`

	BetAmount      decimal.Decimal `gorm:"type:decimal(20,6)"`
	EntryYesPrice  decimal.Decimal `gorm:"type:decimal(10,6)"`
	EntryNoPrice   decimal.Decimal `gorm:"type:decimal(10,6)"`
	ExpectedPayout decimal.Decimal `gorm:"type:decimal(20,6)"` // bet / entry price of the chosen side

	PositionStatus  string          `gorm:"index"` // OPEN, CLOSED_MANUAL, CLOSED_RESOLVED
	CurrentYesPrice decimal.Decimal `gorm:"type:decimal(10,6)"`
	CurrentNoPrice  decimal.Decimal `gorm:"type:decimal(10,6)"`
	OddsUpdatedAt   time.Time
	UnrealizedPnL   decimal.Decimal `gorm:"type:decimal(20,6)"`

	ClosePrice  decimal.Decimal `gorm:"type:decimal(10,6)"`
	CloseReason string          // PROFIT_TAKING, STOP_LOSS, MARKET_RESOLVED, RANDOM_EXIT
	ClosedAt    *time.Time

	Resolved     bool
	Correct      bool
	ProfitLoss   decimal.Decimal `gorm:"type:decimal(20,6)"`
	ActualPayout decimal.Decimal `gorm:"type:decimal(20,6)"`
	Outcome      string          // "YES" or "NO" once known
	ResolvedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CachedMarket mirrors one tradable market from the venue.
type CachedMarket struct {
	ID          string `gorm:"primaryKey"` // venue market id
	Question    string
	Description string
	YesPrice    decimal.Decimal `gorm:"type:decimal(10,6)"`
	NoPrice     decimal.Decimal `gorm:"type:decimal(10,6)"`
	Volume      decimal.Decimal `gorm:"type:decimal(20,2)"`
	Volume24hr  decimal.Decimal `gorm:"type:decimal(20,2)"`
	Liquidity   decimal.Decimal `gorm:"type:decimal(20,2)"`
	EndDate     time.Time
	Active      bool
	Resolved    bool
	Archived    bool
	Analyzed    bool
	Source      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	// Check if this is a PostgreSQL connection string
	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		// SQLite fallback
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" && dbPath != ":memory:" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	// Auto migrate all models
	if err := db.AutoMigrate(&AgentBalance{}, &AgentPrediction{}, &CachedMarket{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Balance operations

// CreateBalanceIfAbsent inserts a balance record unless one already exists.
func (d *Database) CreateBalanceIfAbsent(balance *AgentBalance) error {
	return d.db.Where(AgentBalance{AgentID: balance.AgentID}).FirstOrCreate(balance).Error
}

func (d *Database) GetBalance(agentID string) (*AgentBalance, error) {
	var balance AgentBalance
	err := d.db.First(&balance, "agent_id = ?", agentID).Error
	return &balance, err
}

func (d *Database) GetAllBalances() ([]AgentBalance, error) {
	var balances []AgentBalance
	err := d.db.Order("current_balance DESC").Find(&balances).Error
	return balances, err
}

// DebitForBet atomically debits a stake. The conditional UPDATE enforces
// amount <= balance and balance > floor in one statement, so two concurrent
// bets cannot both pass the check. Returns false when the debit was refused.
func (d *Database) DebitForBet(agentID string, amount, floor decimal.Decimal) (bool, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return false, nil
	}
	res := d.db.Model(&AgentBalance{}).
		Where("agent_id = ? AND current_balance >= ? AND current_balance > ?", agentID, amount, floor).
		Updates(map[string]interface{}{
			"current_balance":  gorm.Expr("current_balance - ?", amount),
			"total_wagered":    gorm.Expr("total_wagered + ?", amount),
			"prediction_count": gorm.Expr("prediction_count + 1"),
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CreditRefund reverses a DebitForBet for a stake that never became a
// position.
func (d *Database) CreditRefund(agentID string, amount decimal.Decimal) error {
	return d.db.Model(&AgentBalance{}).
		Where("agent_id = ?", agentID).
		Updates(map[string]interface{}{
			"current_balance":  gorm.Expr("current_balance + ?", amount),
			"total_wagered":    gorm.Expr("total_wagered - ?", amount),
			"prediction_count": gorm.Expr("prediction_count - 1"),
			"updated_at":       time.Now(),
		}).Error
}

func (d *Database) SaveBalance(balance *AgentBalance) error {
	return d.db.Save(balance).Error
}

// ResetBalance puts an agent back at its initial bankroll with zeroed stats.
func (d *Database) ResetBalance(agentID string) error {
	return d.db.Model(&AgentBalance{}).
		Where("agent_id = ?", agentID).
		Updates(map[string]interface{}{
			"current_balance":  gorm.Expr("initial_balance"),
			"total_wagered":    decimal.Zero,
			"total_winnings":   decimal.Zero,
			"total_losses":     decimal.Zero,
			"prediction_count": 0,
			"win_count":        0,
			"loss_count":       0,
			"win_rate":         decimal.Zero,
			"roi":              decimal.Zero,
			"biggest_win":      decimal.Zero,
			"biggest_loss":     decimal.Zero,
			"current_streak":   0,
			"updated_at":       time.Now(),
		}).Error
}

// Prediction operations

func (d *Database) CreatePrediction(pred *AgentPrediction) error {
	return d.db.Create(pred).Error
}

func (d *Database) SavePrediction(pred *AgentPrediction) error {
	return d.db.Save(pred).Error
}

func (d *Database) GetPrediction(id string) (*AgentPrediction, error) {
	var pred AgentPrediction
	err := d.db.First(&pred, "id = ?", id).Error
	return &pred, err
}

func (d *Database) GetPredictionsByAgent(agentID string) ([]AgentPrediction, error) {
	var preds []AgentPrediction
	err := d.db.Where("agent_id = ?", agentID).Order("created_at DESC").Find(&preds).Error
	return preds, err
}

func (d *Database) GetPredictionsByMarket(marketID string) ([]AgentPrediction, error) {
	var preds []AgentPrediction
	err := d.db.Where("market_id = ?", marketID).Order("created_at DESC").Find(&preds).Error
	return preds, err
}

// GetOpenPositions returns OPEN positions, optionally scoped to one market.
func (d *Database) GetOpenPositions(marketID string) ([]AgentPrediction, error) {
	var preds []AgentPrediction
	q := d.db.Where("position_status = ?", "OPEN")
	if marketID != "" {
		q = q.Where("market_id = ?", marketID)
	}
	err := q.Order("created_at ASC").Find(&preds).Error
	return preds, err
}

// GetUnresolvedPredictions returns records on a market with resolved = false
// regardless of position status, so a manually-closed bet still gets its
// outcome recorded at resolution.
func (d *Database) GetUnresolvedPredictions(marketID string) ([]AgentPrediction, error) {
	var preds []AgentPrediction
	err := d.db.Where("market_id = ? AND resolved = ?", marketID, false).Find(&preds).Error
	return preds, err
}

// HasAgentPredicted reports whether the agent already has any bet on the market.
func (d *Database) HasAgentPredicted(agentID, marketID string) (bool, error) {
	var count int64
	err := d.db.Model(&AgentPrediction{}).
		Where("agent_id = ? AND market_id = ?", agentID, marketID).
		Count(&count).Error
	return count > 0, err
}

// CountOpenForPair counts OPEN positions for one agent+market pair.
func (d *Database) CountOpenForPair(agentID, marketID string) (int64, error) {
	var count int64
	err := d.db.Model(&AgentPrediction{}).
		Where("agent_id = ? AND market_id = ? AND position_status = ?", agentID, marketID, "OPEN").
		Count(&count).Error
	return count, err
}

// MarketsWithOpenPositions lists distinct market ids carrying OPEN positions.
func (d *Database) MarketsWithOpenPositions() ([]string, error) {
	var ids []string
	err := d.db.Model(&AgentPrediction{}).
		Where("position_status = ?", "OPEN").
		Distinct("market_id").
		Pluck("market_id", &ids).Error
	return ids, err
}

// DeleteAllPredictions wipes the prediction table (admin reset).
func (d *Database) DeleteAllPredictions() error {
	return d.db.Where("1 = 1").Delete(&AgentPrediction{}).Error
}

// Market operations

func (d *Database) GetCachedMarket(id string) (*CachedMarket, error) {
	var market CachedMarket
	err := d.db.First(&market, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &market, nil
}

func (d *Database) CreateCachedMarket(market *CachedMarket) error {
	return d.db.Create(market).Error
}

func (d *Database) SaveCachedMarket(market *CachedMarket) error {
	return d.db.Save(market).Error
}

// GetFreshMarkets returns active, unresolved, not-yet-analyzed markets with
// the most liquid first.
func (d *Database) GetFreshMarkets(limit int) ([]CachedMarket, error) {
	var markets []CachedMarket
	err := d.db.
		Where("active = ? AND resolved = ? AND archived = ? AND analyzed = ?", true, false, false, false).
		Order("volume DESC").
		Limit(limit).
		Find(&markets).Error
	return markets, err
}

func (d *Database) MarkAnalyzed(id string) error {
	return d.db.Model(&CachedMarket{}).Where("id = ?", id).Update("analyzed", true).Error
}

// ResetAnalyzedFlags clears the analyzed gate on every market (admin reset).
func (d *Database) ResetAnalyzedFlags() error {
	return d.db.Model(&CachedMarket{}).Where("analyzed = ?", true).Update("analyzed", false).Error
}

// IsNotFound reports whether err is gorm's missing-record error.
func IsNotFound(err error) bool {
	return err == gorm.ErrRecordNotFound
}

// Stats operations

func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var predictionCount int64
	d.db.Model(&AgentPrediction{}).Count(&predictionCount)
	stats["total_predictions"] = predictionCount

	var openCount int64
	d.db.Model(&AgentPrediction{}).Where("position_status = ?", "OPEN").Count(&openCount)
	stats["open_positions"] = openCount

	var resolvedCount int64
	d.db.Model(&AgentPrediction{}).Where("resolved = ?", true).Count(&resolvedCount)
	stats["resolved_predictions"] = resolvedCount

	var marketCount int64
	d.db.Model(&CachedMarket{}).Where("active = ?", true).Count(&marketCount)
	stats["active_markets"] = marketCount

	var pnlResult struct {
		Total decimal.Decimal
	}
	d.db.Model(&AgentPrediction{}).
		Where("resolved = ? OR position_status <> ?", true, "OPEN").
		Select("COALESCE(SUM(profit_loss), 0) as total").
		Scan(&pnlResult)
	stats["settled_pnl"] = pnlResult.Total

	return stats, nil
}
