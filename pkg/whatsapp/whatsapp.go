package whatsapp

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mdp/qrterminal"
	qrCode "github.com/skip2/go-qrcode"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/gdbrns/go-whatsapp-group-bot/pkg/env"
	"github.com/gdbrns/go-whatsapp-group-bot/pkg/log"
)

var (
	ErrInvalidGroupID   = errors.New("WhatsApp Group ID is Not Group Server")
	ErrClientNotValid   = errors.New("WhatsApp Client is not Valid")
	ErrStoreIDEmpty     = errors.New("WhatsApp Client Store ID is Empty, Please Re-Login and Scan QR Code Again")
	ErrNoPairingQR      = errors.New("WhatsApp Client has no Pending Pairing QR Code")
	ErrMessageTextEmpty = errors.New("WhatsApp Message Text Should Not Empty")
)

const (
	qrChannelWaitTimeout = 2 * time.Minute
	logoutRequestTimeout = 30 * time.Second
)

// InitDatastore opens the whatsmeow session datastore and upgrades its
// schema. Driver and DSN come from WHATSAPP_DATASTORE_TYPE and
// WHATSAPP_DATASTORE_URI; sqlite is the default so the bot runs without
// external services.
func InitDatastore(ctx context.Context) (*sqlstore.Container, error) {
	dbType := env.GetEnvStringOrDefault("WHATSAPP_DATASTORE_TYPE", "sqlite")
	dbURI := env.GetEnvStringOrDefault("WHATSAPP_DATASTORE_URI", "file:datastore.db?_pragma=foreign_keys(1)")

	driver := normalizeDatastoreDriver(dbType)
	dbURI = normalizeDatastoreDSN(driver, dbURI)

	log.Print(nil).Info("Initializing WhatsApp datastore with driver=" + driver)

	datastore, err := sqlstore.New(ctx, driver, dbURI, nil)
	if err != nil {
		return nil, err
	}

	if err := datastore.Upgrade(ctx); err != nil {
		return nil, err
	}

	return datastore, nil
}

func normalizeDatastoreDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "postgresql", "postgres", "pgx":
		return "pgx"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return strings.ToLower(driver)
	}
}

func normalizeDatastoreDSN(driver string, dsn string) string {
	if driver != "pgx" {
		return dsn
	}
	appendParam := func(current string, key string, value string) string {
		if strings.Contains(current, key+"=") {
			return current
		}
		separator := "?"
		if strings.Contains(current, "?") {
			if strings.HasSuffix(current, "?") || strings.HasSuffix(current, "&") {
				separator = ""
			} else {
				separator = "&"
			}
		}
		return current + separator + key + "=" + value
	}
	dsn = appendParam(dsn, "prefer_simple_protocol", "true")
	dsn = appendParam(dsn, "statement_cache_capacity", "0")
	dsn = appendParam(dsn, "default_query_exec_mode", "simple_protocol")
	return dsn
}

// Client wraps one whatsmeow session. The bot runs a single account, so
// there is exactly one of these for the lifetime of the process.
type Client struct {
	wa *whatsmeow.Client

	qrMu     sync.RWMutex
	qrPNG    string
	qrExpiry time.Time
}

func NewClient(device *store.Device) *Client {
	store.DeviceProps.Os = proto.String(runtime.GOOS)
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
	store.DeviceProps.RequireFullSync = proto.Bool(false)

	client := whatsmeow.NewClient(device, nil)

	if proxyURL := env.GetEnvStringOrDefault("WHATSAPP_CLIENT_PROXY_URL", ""); proxyURL != "" {
		client.SetProxyAddress(proxyURL)
	}

	// Reconnection is owned by the supervisor, not whatsmeow.
	client.EnableAutoReconnect = false
	client.AutoTrustIdentity = true

	return &Client{wa: client}
}

func (c *Client) AddEventHandler(handler func(evt interface{})) {
	c.wa.AddEventHandler(handler)
}

// Login connects the client. On first run it drives the QR pairing flow:
// each code is rendered to the terminal and kept as a PNG for the status
// server until pairing succeeds or the channel times out.
func (c *Client) Login(ctx context.Context) error {
	if c.wa.Store.ID != nil {
		return c.Connect()
	}

	ctx, cancel := context.WithTimeout(ctx, qrChannelWaitTimeout)
	defer cancel()

	qrChan, err := c.wa.GetQRChannel(ctx)
	if err != nil {
		return err
	}

	if err := c.wa.Connect(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			c.clearPairingQR()
			return ctx.Err()
		case evt, ok := <-qrChan:
			if !ok {
				c.clearPairingQR()
				return errors.New("whatsapp qr channel closed before delivering a code")
			}
			switch evt.Event {
			case "code":
				log.Print(nil).Info("Scan the QR code below with WhatsApp to pair this device")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
				c.storePairingQR(evt.Code, evt.Timeout)
			case whatsmeow.QRChannelSuccess.Event:
				c.clearPairingQR()
				return nil
			case whatsmeow.QRChannelTimeout.Event:
				c.clearPairingQR()
				return errors.New("whatsapp qr channel timed out")
			case whatsmeow.QRChannelErrUnexpectedEvent.Event:
				c.clearPairingQR()
				return errors.New("whatsapp qr channel entered an unexpected state")
			case whatsmeow.QRChannelClientOutdated.Event:
				c.clearPairingQR()
				return errors.New("whatsapp client version is outdated for QR pairing")
			case whatsmeow.QRChannelScannedWithoutMultidevice.Event:
				c.clearPairingQR()
				return errors.New("whatsapp qr scanned without multi-device enabled")
			case "error":
				c.clearPairingQR()
				if evt.Error != nil {
					return evt.Error
				}
				return errors.New("whatsapp qr channel reported an unspecified error")
			}
		}
	}
}

func (c *Client) storePairingQR(code string, timeout time.Duration) {
	qrPNG, err := qrCode.Encode(code, qrCode.Medium, 256)
	if err != nil {
		log.Print(nil).WithError(err).Warn("Failed to encode pairing QR code as PNG")
		return
	}
	c.qrMu.Lock()
	c.qrPNG = "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrPNG)
	c.qrExpiry = time.Now().Add(timeout)
	c.qrMu.Unlock()
}

func (c *Client) clearPairingQR() {
	c.qrMu.Lock()
	c.qrPNG = ""
	c.qrExpiry = time.Time{}
	c.qrMu.Unlock()
}

// PairingQR returns the current pairing QR code as a PNG data URI while
// the first-run pairing flow is waiting for a scan.
func (c *Client) PairingQR() (string, error) {
	c.qrMu.RLock()
	defer c.qrMu.RUnlock()
	if c.qrPNG == "" || time.Now().After(c.qrExpiry) {
		return "", ErrNoPairingQR
	}
	return c.qrPNG, nil
}

func (c *Client) Connect() error {
	if c.wa.Store.ID == nil {
		return ErrStoreIDEmpty
	}
	return c.wa.Connect()
}

func (c *Client) Reconnect() error {
	c.wa.Disconnect()
	return c.Connect()
}

func (c *Client) Disconnect() {
	c.wa.Disconnect()
}

func (c *Client) Logout(ctx context.Context) error {
	if c.wa.Store.ID == nil {
		return ErrStoreIDEmpty
	}

	logoutCtx, cancel := context.WithTimeout(ctx, logoutRequestTimeout)
	defer cancel()

	if err := c.wa.Logout(logoutCtx); err != nil {
		c.wa.Disconnect()
		return c.wa.Store.Delete(logoutCtx)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	return c.wa.IsConnected()
}

func (c *Client) IsLoggedIn() bool {
	return c.wa.IsLoggedIn()
}

func (c *Client) IsClientOK() error {
	if c.wa == nil {
		return ErrClientNotValid
	}
	if !c.wa.IsConnected() {
		return errors.New("WhatsApp Client is not Connected")
	}
	if !c.wa.IsLoggedIn() {
		return errors.New("WhatsApp Client is not Logged In")
	}
	return nil
}

// OwnJID returns the bot account's own JID, or the empty JID before the
// first successful pairing.
func (c *Client) OwnJID() types.JID {
	if c.wa.Store.ID == nil {
		return types.EmptyJID
	}
	return c.wa.Store.ID.ToNonAD()
}

// GroupInfo fetches fresh group metadata; no caching, every call is one
// round trip to the Session Provider.
func (c *Client) GroupInfo(ctx context.Context, gjid types.JID) (*types.GroupInfo, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if gjid.Server != types.GroupServer {
		return nil, ErrInvalidGroupID
	}
	if err := c.IsClientOK(); err != nil {
		return nil, err
	}
	return c.wa.GetGroupInfo(ctx, gjid)
}

func (c *Client) SendText(ctx context.Context, chat types.JID, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(text) == "" {
		return ErrMessageTextEmpty
	}
	if err := c.IsClientOK(); err != nil {
		return err
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: c.wa.GenerateMessageID()}
	msgContent := &waE2E.Message{
		Conversation: proto.String(text),
	}
	_, err := c.wa.SendMessage(ctx, chat, msgContent, msgExtra)
	return err
}

// SendMentions sends a text message carrying a machine-readable mention
// list so clients render the in-text @markers as tags.
func (c *Client) SendMentions(ctx context.Context, chat types.JID, text string, mentions []types.JID) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(text) == "" {
		return ErrMessageTextEmpty
	}
	if err := c.IsClientOK(); err != nil {
		return err
	}

	mentioned := make([]string, 0, len(mentions))
	for _, mention := range mentions {
		mentioned = append(mentioned, mention.String())
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: c.wa.GenerateMessageID()}
	msgContent := &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waE2E.ContextInfo{
				MentionedJID: mentioned,
			},
		},
	}
	_, err := c.wa.SendMessage(ctx, chat, msgContent, msgExtra)
	return err
}
