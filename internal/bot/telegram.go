// Package bot is the Telegram admin surface for the arena: leaderboard and
// position views plus the control operations (tracker start/stop, forced
// cycles, manual resolution, resets).
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/agentarena/internal/config"
	"github.com/web3guy0/agentarena/internal/database"
	"github.com/web3guy0/agentarena/internal/ledger"
	"github.com/web3guy0/agentarena/internal/markets"
	"github.com/web3guy0/agentarena/internal/positions"
	"github.com/web3guy0/agentarena/internal/tracker"
)

const accessDenied = "🚫 ADMIN ACCESS DENIED"

// Bot handles Telegram interactions for the arena.
type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *config.Config
	db       *database.Database
	ledger   *ledger.Ledger
	store    *positions.Store
	cache    *markets.Cache
	trackers map[string]*tracker.Tracker

	stopCh chan struct{}
}

// New creates the admin bot.
func New(cfg *config.Config, db *database.Database, lg *ledger.Ledger, store *positions.Store,
	cache *markets.Cache, trackers map[string]*tracker.Tracker) (*Bot, error) {

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")

	return &Bot{
		api:      api,
		cfg:      cfg,
		db:       db,
		ledger:   lg,
		store:    store,
		cache:    cache,
		trackers: trackers,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins the bot's command listener.
func (b *Bot) Start() {
	go b.listenForCommands()
	if b.cfg.TelegramChatID != 0 {
		b.send(b.cfg.TelegramChatID, "🏟️ Agent arena online. /help for commands.")
	}
}

// Stop stops the bot.
func (b *Bot) Stop() {
	close(b.stopCh)
}

func (b *Bot) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if !msg.IsCommand() {
		return
	}

	// Read-only commands are open; control commands need the admin chat.
	switch msg.Command() {
	case "start", "help":
		b.cmdHelp(chatID)
	case "status":
		b.cmdStatus(chatID)
	case "leaderboard":
		b.cmdLeaderboard(chatID)
	case "positions":
		b.cmdPositions(chatID)
	case "trackers":
		b.cmdTrackers(chatID)
	case "run":
		b.adminOnly(chatID, func() { b.cmdRun(chatID, msg.CommandArguments()) })
	case "halt":
		b.adminOnly(chatID, func() { b.cmdHalt(chatID, msg.CommandArguments()) })
	case "forcecycle":
		b.adminOnly(chatID, func() { b.cmdForceCycle(chatID, msg.CommandArguments()) })
	case "resolve":
		b.adminOnly(chatID, func() { b.cmdResolve(chatID, msg.CommandArguments()) })
	case "resetagent":
		b.adminOnly(chatID, func() { b.cmdResetAgent(chatID, msg.CommandArguments()) })
	case "resetall":
		b.adminOnly(chatID, func() { b.cmdResetAll(chatID) })
	}
}

func (b *Bot) adminOnly(chatID int64, fn func()) {
	if chatID != b.cfg.TelegramChatID {
		b.send(chatID, accessDenied)
		return
	}
	fn()
}

func (b *Bot) cmdHelp(chatID int64) {
	help := `🏟️ *Agent Arena*

/status — system stats
/leaderboard — agent bankrolls
/positions — open positions
/trackers — tracker states

Admin:
/run <tracker> — start a tracker
/halt <tracker> — stop a tracker
/forcecycle <tracker> — run one cycle now
/resolve <market> <YES|NO> — manual resolution
/resetagent <id> — reset one bankroll
/resetall — clear predictions + analyzed flags`
	b.send(chatID, help)
}

func (b *Bot) cmdStatus(chatID int64) {
	stats, err := b.db.GetStats()
	if err != nil {
		b.send(chatID, "❌ Failed to load stats")
		return
	}
	text := fmt.Sprintf(`📊 *Arena Status*

Predictions: %v (open %v, resolved %v)
Active markets: %v
Settled P&L: %v`,
		stats["total_predictions"], stats["open_positions"], stats["resolved_predictions"],
		stats["active_markets"], stats["settled_pnl"])
	b.send(chatID, text)
}

func (b *Bot) cmdLeaderboard(chatID int64) {
	balances, err := b.ledger.Leaderboard()
	if err != nil {
		b.send(chatID, "❌ Failed to load leaderboard")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 *Leaderboard*\n\n")
	medals := []string{"🥇", "🥈", "🥉"}
	for i, bal := range balances {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		sb.WriteString(fmt.Sprintf("%s %s — $%s (streak %+d, ROI %s%%)\n",
			rank, bal.AgentName, bal.CurrentBalance.StringFixed(2),
			bal.CurrentStreak, bal.ROI.StringFixed(1)))
	}
	b.send(chatID, sb.String())
}

func (b *Bot) cmdPositions(chatID int64) {
	open, err := b.store.OpenPositions("")
	if err != nil {
		b.send(chatID, "❌ Failed to load positions")
		return
	}
	if len(open) == 0 {
		b.send(chatID, "No open positions")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📈 *%d Open Positions*\n\n", len(open)))
	for _, pos := range open {
		sb.WriteString(fmt.Sprintf("%s: %s $%s on %s (mark %s)\n",
			pos.AgentName, pos.Prediction, pos.BetAmount.StringFixed(2),
			truncate(pos.MarketQuestion, 40), pos.UnrealizedPnL.StringFixed(2)))
	}
	b.send(chatID, sb.String())
}

func (b *Bot) cmdTrackers(chatID int64) {
	var sb strings.Builder
	sb.WriteString("⏱️ *Trackers*\n\n")
	for name, t := range b.trackers {
		state := "stopped"
		if t.Running() {
			state = "running"
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", name, state))
	}
	b.send(chatID, sb.String())
}

func (b *Bot) cmdRun(chatID int64, args string) {
	name := strings.TrimSpace(args)
	t, ok := b.trackers[name]
	if !ok {
		b.send(chatID, fmt.Sprintf("❌ Unknown tracker %q", name))
		return
	}
	t.Start(context.Background())
	b.send(chatID, fmt.Sprintf("✅ Tracker %s running", name))
}

func (b *Bot) cmdHalt(chatID int64, args string) {
	name := strings.TrimSpace(args)
	t, ok := b.trackers[name]
	if !ok {
		b.send(chatID, fmt.Sprintf("❌ Unknown tracker %q", name))
		return
	}
	t.Stop()
	b.send(chatID, fmt.Sprintf("✅ Tracker %s stopped", name))
}

func (b *Bot) cmdForceCycle(chatID int64, args string) {
	name := strings.TrimSpace(args)
	t, ok := b.trackers[name]
	if !ok {
		b.send(chatID, fmt.Sprintf("❌ Unknown tracker %q", name))
		return
	}
	if err := t.ForceCycle(context.Background()); err != nil {
		b.send(chatID, fmt.Sprintf("❌ Cycle failed: %v", err))
		return
	}
	b.send(chatID, fmt.Sprintf("✅ Cycle complete for %s", name))
}

func (b *Bot) cmdResolve(chatID int64, args string) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		b.send(chatID, "Usage: /resolve <marketID> <YES|NO>")
		return
	}
	settled, err := b.cache.ResolveManually(parts[0], strings.ToUpper(parts[1]))
	if err != nil {
		b.send(chatID, fmt.Sprintf("❌ Resolution failed: %v", err))
		return
	}
	b.send(chatID, fmt.Sprintf("✅ Market resolved, %d predictions settled", settled))
}

func (b *Bot) cmdResetAgent(chatID int64, args string) {
	agentID := strings.TrimSpace(args)
	if agentID == "" {
		b.send(chatID, "Usage: /resetagent <agentID>")
		return
	}
	if err := b.ledger.ResetAgent(agentID); err != nil {
		b.send(chatID, fmt.Sprintf("❌ Reset failed: %v", err))
		return
	}
	b.send(chatID, fmt.Sprintf("✅ %s back to starting bankroll", agentID))
}

func (b *Bot) cmdResetAll(chatID int64) {
	if err := b.store.ClearAll(); err != nil {
		b.send(chatID, fmt.Sprintf("❌ Clearing predictions failed: %v", err))
		return
	}
	if err := b.cache.ResetAnalyzedFlags(); err != nil {
		b.send(chatID, fmt.Sprintf("❌ Resetting analyzed flags failed: %v", err))
		return
	}
	b.send(chatID, "✅ Predictions cleared, analyzed flags reset")
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
