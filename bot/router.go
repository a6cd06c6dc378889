package bot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finbot/dialog"
	"finbot/ledger"
)

const helpText = `Available commands:

/start - set up or show the menu
/balance - current balance
/expense <amount> [description] - quick expense
/income <amount> [description] - quick income
/summary - current month summary
/backup - download your movements as CSV
/help - this text`

// Router authorizes inbound updates and maps them onto the dialog machine
// and the ledger's direct commands.
type Router struct {
	ledger       *ledger.Ledger
	machine      *dialog.Machine
	transport    Transport
	authorizedID int64
	log          *slog.Logger
	now          func() time.Time
}

// NewRouter wires the command surface for the single allowlisted principal.
func NewRouter(l *ledger.Ledger, m *dialog.Machine, transport Transport, authorizedID int64, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		ledger:       l,
		machine:      m,
		transport:    transport,
		authorizedID: authorizedID,
		log:          log.With("component", "router"),
		now:          time.Now,
	}
}

// HandleUpdate processes one inbound event. Unauthorized principals are
// logged and dropped without a reply.
func (r *Router) HandleUpdate(ctx context.Context, update Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.UserID != r.authorizedID {
			r.log.Warn("unauthorized message dropped", "user_id", msg.UserID)
			return
		}
		r.handleMessage(ctx, msg)
	case update.Callback != nil:
		cb := update.Callback
		if cb.UserID != r.authorizedID {
			r.log.Warn("unauthorized callback dropped", "user_id", cb.UserID)
			return
		}
		r.handleCallback(ctx, cb)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *Message) {
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		r.handleCommand(ctx, msg, text)
		return
	}
	r.send(ctx, msg.ChatID, r.machine.HandleText(ctx, msg.UserID, text))
}

func (r *Router) handleCommand(ctx context.Context, msg *Message, text string) {
	fields := strings.Fields(text)
	command := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	// Commands addressed to a specific bot ("/start@finbot") still count.
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	args := fields[1:]

	switch command {
	case "start":
		r.send(ctx, msg.ChatID, r.machine.Start(ctx, msg.UserID))
	case "balance":
		balance, err := r.ledger.CurrentBalance(ctx, msg.UserID)
		if err != nil {
			r.sendError(ctx, msg.ChatID, err)
			return
		}
		r.send(ctx, msg.ChatID, dialog.Reply{Text: fmt.Sprintf("💰 Current balance: %s", balance)})
	case "expense":
		r.fastPath(ctx, msg, ledger.KindExpense, args)
	case "income":
		r.fastPath(ctx, msg, ledger.KindIncome, args)
	case "summary":
		r.send(ctx, msg.ChatID, r.machine.SummaryReply(ctx, msg.UserID))
	case "backup":
		r.sendBackup(ctx, msg)
	case "help":
		r.send(ctx, msg.ChatID, dialog.Reply{Text: helpText})
	default:
		r.send(ctx, msg.ChatID, dialog.Reply{Text: "❌ Unknown command. Try /help."})
	}
}

func (r *Router) fastPath(ctx context.Context, msg *Message, kind ledger.Kind, args []string) {
	if len(args) == 0 {
		r.send(ctx, msg.ChatID, dialog.Reply{Text: fmt.Sprintf("❌ Usage: /%s <amount> [description]", kind)})
		return
	}
	description := strings.Join(args[1:], " ")
	r.send(ctx, msg.ChatID, r.machine.FastPathMovement(ctx, msg.UserID, kind, args[0], description))
}

func (r *Router) sendBackup(ctx context.Context, msg *Message) {
	var buf bytes.Buffer
	rows, err := r.ledger.ExportCSV(ctx, msg.UserID, &buf)
	if err != nil {
		r.sendError(ctx, msg.ChatID, err)
		return
	}
	if rows == 0 {
		r.send(ctx, msg.ChatID, dialog.Reply{Text: "📦 Nothing to back up yet."})
		return
	}
	filename := fmt.Sprintf("finanzas_%s.csv", r.now().Format("20060102"))
	caption := fmt.Sprintf("📦 %d movements exported.", rows)
	if err := r.transport.SendDocument(ctx, msg.ChatID, filename, buf.Bytes(), caption); err != nil {
		r.log.Error("backup delivery failed", "error", err)
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *Callback) {
	if err := r.transport.AnswerCallback(ctx, cb.ID); err != nil {
		r.log.Warn("callback ack failed", "error", err)
	}
	r.send(ctx, cb.ChatID, r.machine.HandleCallback(ctx, cb.UserID, cb.Data))
}

func (r *Router) send(ctx context.Context, chatID int64, reply dialog.Reply) {
	if reply.Text == "" {
		return
	}
	if err := r.transport.SendMessage(ctx, chatID, reply.Text, reply.Buttons); err != nil {
		r.log.Error("send failed", "chat_id", chatID, "error", err)
	}
}

func (r *Router) sendError(ctx context.Context, chatID int64, err error) {
	r.log.Error("command failed", "error", err)
	r.send(ctx, chatID, dialog.Reply{Text: "❌ Something went wrong, please try again."})
}
