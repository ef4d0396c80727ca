// Package bot is the Telegram transport. It owns keyboards and message
// plumbing only; every conversational decision is delegated to the
// assistant orchestrator.
package bot

import (
	"context"
	"strconv"
	"time"

	"gopkg.in/telebot.v3"

	"github.com/tradevisor/tradevisor/internal/assistant"
	"github.com/tradevisor/tradevisor/internal/convo"
	"github.com/tradevisor/tradevisor/internal/observ"
)

// Keyboards
var (
	menuBtnAnalyze  = telebot.Btn{Text: "🔍 Analyze"}
	menuBtnSettings = telebot.Btn{Text: "⚙️ Settings"}
	menuBtnQuiz     = telebot.Btn{Text: "🧭 Quiz"}
	menuBtnHome     = telebot.Btn{Text: "🏠 Home"}
	menuBtnBack     = telebot.Btn{Text: "↩️ Back"}
	menuKeyboard    = &telebot.ReplyMarkup{ResizeKeyboard: true}

	btnSetTimeframe = telebot.Btn{Text: "⏱ Timeframe", Unique: "set_tf"}
	btnSetStyle     = telebot.Btn{Text: "🎭 Style", Unique: "set_style"}
	btnSetRisk      = telebot.Btn{Text: "📉 Risk", Unique: "set_risk"}
	btnSetNews      = telebot.Btn{Text: "📰 News", Unique: "set_news"}
)

type Bot struct {
	B           *telebot.Bot
	asst        *assistant.Assistant
	turnTimeout time.Duration
}

func New(token string, asst *assistant.Assistant, turnTimeout time.Duration) (*Bot, error) {
	pref := telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot := &Bot{B: b, asst: asst, turnTimeout: turnTimeout}

	menuKeyboard.Reply(
		menuKeyboard.Row(menuBtnAnalyze),
		menuKeyboard.Row(menuBtnSettings, menuBtnQuiz),
		menuKeyboard.Row(menuBtnHome, menuBtnBack),
	)

	bot.registerHandlers()
	return bot, nil
}

func (bot *Bot) Start() { bot.B.Start() }
func (bot *Bot) Stop()  { bot.B.Stop() }

func (bot *Bot) registerHandlers() {
	bot.B.Handle("/start", bot.textHandler("/start"))
	bot.B.Handle("/home", bot.textHandler("home"))
	bot.B.Handle("/back", bot.textHandler("back"))
	bot.B.Handle("/analyze", bot.textHandler("analyze"))

	bot.B.Handle(&menuBtnAnalyze, bot.textHandler("analyze"))
	bot.B.Handle(&menuBtnHome, bot.textHandler("home"))
	bot.B.Handle(&menuBtnBack, bot.textHandler("back"))
	bot.B.Handle(&menuBtnQuiz, bot.commandHandler(convo.CmdQuiz))
	bot.B.Handle(&menuBtnSettings, bot.handleSettingsMenu)

	bot.B.Handle(&btnSetTimeframe, bot.commandHandler(convo.CmdTimeframe))
	bot.B.Handle(&btnSetStyle, bot.commandHandler(convo.CmdStyle))
	bot.B.Handle(&btnSetRisk, bot.commandHandler(convo.CmdRisk))
	bot.B.Handle(&btnSetNews, bot.commandHandler(convo.CmdNews))

	bot.B.Handle(telebot.OnText, bot.handleText)
	bot.B.Handle(telebot.OnPhoto, bot.handlePhoto)
}

func (bot *Bot) textHandler(text string) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return bot.deliver(c, assistant.Inbound{Text: text})
	}
}

func (bot *Bot) commandHandler(cmd string) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return bot.deliver(c, assistant.Inbound{Command: cmd})
	}
}

func (bot *Bot) handleSettingsMenu(c telebot.Context) error {
	menu := &telebot.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnSetTimeframe, btnSetStyle),
		menu.Row(btnSetRisk, btnSetNews),
	)
	return c.Send("What would you like to change?", menu)
}

func (bot *Bot) handleText(c telebot.Context) error {
	return bot.deliver(c, assistant.Inbound{Text: c.Text()})
}

func (bot *Bot) handlePhoto(c telebot.Context) error {
	photo := c.Message().Photo
	if photo == nil {
		return bot.deliver(c, assistant.Inbound{Text: c.Text()})
	}
	file, err := bot.B.FileByID(photo.FileID)
	if err != nil {
		observ.LogErr("photo_url_failed", err, map[string]any{"user": c.Sender().ID})
		return c.Send("I couldn't fetch that image from Telegram. Please try again.", menuKeyboard)
	}
	url := bot.B.URL + "/file/bot" + bot.B.Token + "/" + file.FilePath
	return bot.deliver(c, assistant.Inbound{Text: c.Message().Caption, ImageURL: url})
}

// deliver runs one turn against the orchestrator, keeping the typing
// indicator alive while the chains work.
func (bot *Bot) deliver(c telebot.Context, in assistant.Inbound) error {
	in.UserID = strconv.FormatInt(c.Sender().ID, 10)
	in.Handle = c.Sender().Username

	ctx, cancel := context.WithTimeout(context.Background(), bot.turnTimeout)
	defer cancel()
	stopTyping := bot.keepTyping(ctx, c)

	out := bot.asst.Handle(ctx, in)
	stopTyping()

	text := out.Text
	if out.QuotaLine != "" {
		text += "\n\n📊 " + out.QuotaLine
	}
	return c.Send(text, menuKeyboard)
}

// keepTyping refreshes Telegram's typing indicator every few seconds until
// the returned stop function is called. The indicator itself expires after
// roughly five seconds, hence the refresh loop.
func (bot *Bot) keepTyping(ctx context.Context, c telebot.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		for {
			if err := c.Notify(telebot.Typing); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}
