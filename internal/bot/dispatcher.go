package bot

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-group-bot/pkg/log"
	"github.com/gdbrns/go-whatsapp-group-bot/pkg/whatsapp"
)

// Session is the slice of the WhatsApp client the command core depends on.
type Session interface {
	OwnJID() types.JID
	GroupInfo(ctx context.Context, gjid types.JID) (*types.GroupInfo, error)
	SendText(ctx context.Context, chat types.JID, text string) error
	SendMentions(ctx context.Context, chat types.JID, text string, mentions []types.JID) error
}

type ResultKind string

const (
	ResultReplied  ResultKind = "replied"
	ResultRejected ResultKind = "rejected"
	ResultIgnored  ResultKind = "ignored"
)

const (
	ReasonNotAGroup          = "not-a-group"
	ReasonNotAdmin           = "not-admin"
	ReasonAdminCheckFailed   = "admin-check-failed"
	ReasonMembersUnavailable = "members-unavailable"
)

// BatchOutcome records the delivery result of one mention batch within a
// broadcast. A non-nil Err marks a batch that failed to send; later
// batches are still attempted.
type BatchOutcome struct {
	Index int
	Size  int
	Err   error
}

// Result is the outcome of dispatching one inbound message.
type Result struct {
	Kind        ResultKind
	Reason      string
	BroadcastID string
	Batches     []BatchOutcome
}

const (
	DefaultCommandPrefix = "!"
	DefaultBatchSize     = 25

	cmdPing   = "ping"
	cmdTagAll = "tagall"

	pingReply               = "Pong 🏓"
	defaultTagAllHeader     = "Hello everyone 👋"
	replyGroupOnly          = "This command only works in *groups*."
	replyAdminOnly          = "❌ Only *group admins* can use this command."
	replyMembersUnavailable = "❌ Could not fetch the member list, try again later."
)

type DispatcherConfig struct {
	// CommandPrefix precedes every command token; defaults to "!".
	CommandPrefix string
	// BatchSize bounds the mention list of a single outbound message.
	// Must be at least 1.
	BatchSize int
	// SendRate throttles mention batches per second; zero means no
	// throttling.
	SendRate rate.Limit
}

// Dispatcher classifies inbound messages, enforces the admin policy for
// broadcasts and drives outbound sends. It is stateless per event; the
// only external dependency is the Session it queries and sends through.
type Dispatcher struct {
	session   Session
	pingCmd   string
	tagAllCmd string
	batchSize int
	limiter   *rate.Limiter
}

func NewDispatcher(session Session, config DispatcherConfig) (*Dispatcher, error) {
	if config.BatchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	prefix := config.CommandPrefix
	if prefix == "" {
		prefix = DefaultCommandPrefix
	}
	sendRate := config.SendRate
	if sendRate <= 0 {
		sendRate = rate.Inf
	}

	return &Dispatcher{
		session:   session,
		pingCmd:   strings.ToLower(prefix + cmdPing),
		tagAllCmd: strings.ToLower(prefix + cmdTagAll),
		batchSize: config.BatchSize,
		limiter:   rate.NewLimiter(sendRate, 1),
	}, nil
}

// HandleMessage classifies one inbound message and produces zero or more
// outbound sends. Messages on the status broadcast channel are never
// dispatched and never replied to.
func (d *Dispatcher) HandleMessage(ctx context.Context, evt *events.Message) Result {
	chat := evt.Info.Chat
	if chat == types.StatusBroadcastJID {
		return Result{Kind: ResultIgnored}
	}

	sender := evt.Info.Sender
	text := ExtractText(evt.Message)
	lower := strings.ToLower(text)

	switch {
	case lower == d.pingCmd:
		d.reply(ctx, chat, pingReply)
		return Result{Kind: ResultReplied}
	case strings.HasPrefix(lower, d.tagAllCmd):
		return d.tagAll(ctx, chat, sender, text)
	}
	return Result{Kind: ResultIgnored}
}

func (d *Dispatcher) tagAll(ctx context.Context, chat types.JID, sender types.JID, text string) Result {
	if chat.Server != types.GroupServer {
		d.reply(ctx, chat, replyGroupOnly)
		return Result{Kind: ResultRejected, Reason: ReasonNotAGroup}
	}

	admins, err := GroupAdmins(ctx, d.session, chat)
	if err != nil {
		// Fail closed: an unanswerable authorization query is a denial.
		log.Print(nil).WithError(err).Warn("Admin query failed for " + chat.String() + ", rejecting broadcast")
		d.reply(ctx, chat, replyAdminOnly)
		return Result{Kind: ResultRejected, Reason: ReasonAdminCheckFailed}
	}
	if _, ok := admins[sender.ToNonAD().String()]; !ok {
		d.reply(ctx, chat, replyAdminOnly)
		return Result{Kind: ResultRejected, Reason: ReasonNotAdmin}
	}

	meta, err := d.session.GroupInfo(ctx, chat)
	if err != nil {
		log.Print(nil).WithError(err).Error("Member list fetch failed for " + chat.String())
		d.reply(ctx, chat, replyMembersUnavailable)
		return Result{Kind: ResultRejected, Reason: ReasonMembersUnavailable}
	}

	own := d.session.OwnJID()
	members := make([]types.JID, 0, len(meta.Participants))
	for _, participant := range meta.Participants {
		if !own.IsEmpty() && participant.JID.ToNonAD().User == own.User {
			continue
		}
		members = append(members, participant.JID)
	}

	header := strings.TrimSpace(text[len(d.tagAllCmd):])
	if header == "" {
		header = defaultTagAllHeader
	}

	// Batch size was validated at construction, so this cannot fail.
	batches, err := Partition(members, d.batchSize)
	if err != nil {
		return Result{Kind: ResultRejected, Reason: err.Error()}
	}

	return d.broadcast(ctx, chat, sender, header, batches)
}

// broadcast sends the mention batches sequentially, each awaited before
// the next is issued. A failed batch is recorded and logged but does not
// cancel the remaining batches; partial delivery is an accepted outcome.
func (d *Dispatcher) broadcast(ctx context.Context, chat types.JID, sender types.JID, header string, batches [][]types.JID) Result {
	result := Result{
		Kind:        ResultReplied,
		BroadcastID: uuid.NewString(),
		Batches:     make([]BatchOutcome, 0, len(batches)),
	}

	log.Print(nil).
		WithField("broadcast_id", result.BroadcastID).
		WithField("batches", len(batches)).
		Info("Broadcasting mentions in " + chat.String() + " requested by " + whatsapp.MaskJIDForLog(sender.User))

	for index, batch := range batches {
		if err := d.limiter.Wait(ctx); err != nil {
			result.Batches = append(result.Batches, BatchOutcome{Index: index, Size: len(batch), Err: err})
			break
		}

		markers := make([]string, 0, len(batch))
		for _, member := range batch {
			markers = append(markers, "@"+whatsapp.DecomposeJID(member.String()))
		}
		body := header + "\n\n" + strings.Join(markers, " ")

		err := d.session.SendMentions(ctx, chat, body, batch)
		if err != nil {
			log.Print(nil).
				WithField("broadcast_id", result.BroadcastID).
				WithField("batch", index).
				WithError(err).
				Error("Failed to send mention batch")
		}
		result.Batches = append(result.Batches, BatchOutcome{Index: index, Size: len(batch), Err: err})
	}
	return result
}

func (d *Dispatcher) reply(ctx context.Context, chat types.JID, text string) {
	if err := d.session.SendText(ctx, chat, text); err != nil {
		log.Print(nil).WithError(err).Error("Failed to send reply to " + chat.String())
	}
}
