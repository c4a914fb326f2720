package channel

import "context"

// Adapter is the contract every channel implementation provides. Transports
// live behind this interface; the core never talks to channel SDKs directly.
type Adapter interface {
	ChannelID() ID
	Capabilities() Capabilities

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HealthCheck(ctx context.Context) HealthStatus

	// SendMessage delivers an outgoing message to the adapter-defined target
	// (room id, conversation id, session id). It returns the channel-native
	// id the transport assigned to the delivered message, or "" when the
	// transport has none; reactions reference that id, not ours.
	SendMessage(ctx context.Context, target string, msg OutgoingMessage) (string, error)

	// DeliveryTarget computes the send target from the channel metadata an
	// inbound message carried.
	DeliveryTarget(metadata map[string]string) string

	// FormatEscalationMessage renders the channel-native notice shown to the
	// user while their question waits for a human.
	FormatEscalationMessage(username string, escalationID int64, supportHandle string) string
}

// Poller is implemented by adapters advertising CapPollConversations.
type Poller interface {
	PollConversations(ctx context.Context) ([]IncomingMessage, error)
}
