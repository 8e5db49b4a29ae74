package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"yield-vault-backend/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const welcomeMessage = `👋 Welcome to DeFi Vault Copilot!

I'm your 24/7 yield assistant 🚀
I'll help you track and automate your on-chain earnings in real-time.

To link your account, just tap the button in the app or send me your connection token.`

// TelegramBotWorker long-polls the bot API and drives account linking. It
// deliberately holds no database handle: a /start token is redeemed through
// the public verify endpoint, exactly as an external bot process would.
type TelegramBotWorker struct {
	bot        *tgbotapi.BotAPI
	verifyURL  string
	httpClient *http.Client
}

func NewTelegramBotWorker(botToken, verifyURL string) (*TelegramBotWorker, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect bot: %w", err)
	}

	return &TelegramBotWorker{
		bot:        bot,
		verifyURL:  verifyURL,
		httpClient: utils.HTTPClient,
	}, nil
}

func (w *TelegramBotWorker) Start(ctx context.Context) {
	log.Printf("🤖 Telegram bot worker running as @%s", w.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := w.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			w.bot.StopReceivingUpdates()
			log.Println("⏹️ Telegram bot worker stopped")
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Command() != "start" {
				continue
			}
			w.handleStart(update.Message)
		}
	}
}

func (w *TelegramBotWorker) handleStart(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	token := strings.TrimSpace(msg.CommandArguments())

	w.send(chatID, welcomeMessage)

	if token == "" {
		w.send(chatID, `ℹ️ If you haven't already, open the app and tap "Connect Telegram" to get started.`)
		return
	}

	username := ""
	if msg.From != nil {
		username = msg.From.UserName
	}

	if err := w.verify(token, chatID, username); err != nil {
		log.Printf("[bot] verify failed for chat %d: %v", chatID, err)
		w.send(chatID, "❌ Failed to link Telegram. Please try again from the app.")
		return
	}
	w.send(chatID, "✅ Telegram linked successfully! You're now set to receive notifications.")
}

// verify redeems the token against the service's own public API.
func (w *TelegramBotWorker) verify(token string, chatID int64, username string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"token":            token,
		"telegramChatId":   chatID,
		"telegramUsername": username,
	})
	if err != nil {
		return err
	}

	resp, err := w.httpClient.Post(w.verifyURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("verify endpoint returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (w *TelegramBotWorker) send(chatID int64, text string) {
	if _, err := w.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("[bot] failed to send message to chat %d: %v", chatID, err)
	}
}
