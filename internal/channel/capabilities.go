package channel

import "sort"

// Capability names a feature a channel adapter supports. The pipeline uses
// capabilities for adapter selection instead of type switching.
type Capability string

const (
	CapReceiveMessages      Capability = "RECEIVE_MESSAGES"
	CapSendResponses        Capability = "SEND_RESPONSES"
	CapPollConversations    Capability = "POLL_CONVERSATIONS"
	CapExtractFAQs          Capability = "EXTRACT_FAQS"
	CapPersistentConnection Capability = "PERSISTENT_CONNECTION"
	CapTextMessages         Capability = "TEXT_MESSAGES"
	CapChatHistory          Capability = "CHAT_HISTORY"
)

// Capabilities is the feature set an adapter advertises.
type Capabilities map[Capability]bool

// NewCapabilities builds a set from the given capability names.
func NewCapabilities(caps ...Capability) Capabilities {
	set := make(Capabilities, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

// Has reports whether the capability is present.
func (c Capabilities) Has(capability Capability) bool {
	return c[capability]
}

// List returns the capability names in the set, order unspecified.
func (c Capabilities) List() []Capability {
	items := make([]Capability, 0, len(c))
	for capability, ok := range c {
		if ok {
			items = append(items, capability)
		}
	}
	return items
}

// Names returns the capability names sorted, for stable API output.
func (c Capabilities) Names() []string {
	names := make([]string, 0, len(c))
	for _, capability := range c.List() {
		names = append(names, string(capability))
	}
	sort.Strings(names)
	return names
}
