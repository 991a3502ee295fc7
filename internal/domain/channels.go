package domain

// Channel is a notification delivery medium.
type Channel string

const (
	ChannelInApp Channel = "IN_APP"
	ChannelEmail Channel = "EMAIL"
	ChannelSlack Channel = "SLACK"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
)

// defaultChannels maps every notification type to its default delivery
// channels. Static: never mutated at runtime. Types absent from the map fall
// back to {IN_APP} in DefaultChannels.
var defaultChannels = map[NotificationType][]Channel{
	TypeDealAssigned:      {ChannelInApp, ChannelEmail},
	TypeDealWon:           {ChannelInApp, ChannelEmail, ChannelSlack},
	TypeDealLost:          {ChannelInApp, ChannelEmail},
	TypeDealStageChanged:  {ChannelInApp},
	TypeTaskAssigned:      {ChannelInApp, ChannelPush},
	TypeTaskOverdue:       {ChannelInApp, ChannelEmail, ChannelPush},
	TypeAccountHealthDrop: {ChannelInApp, ChannelEmail, ChannelSlack},
	TypeUsageLimitWarning: {ChannelInApp, ChannelEmail},
	TypeMention:           {ChannelInApp, ChannelPush},
	TypeSystemAnnounce:    {ChannelInApp},
}

// DefaultChannels returns the policy-table channel set for t. The returned
// slice is a copy; callers may modify it freely.
func DefaultChannels(t NotificationType) []Channel {
	chs, ok := defaultChannels[t]
	if !ok {
		return []Channel{ChannelInApp}
	}
	out := make([]Channel, len(chs))
	copy(out, chs)
	return out
}

// queueNames maps each out-of-band channel to the delivery queue's channel
// name. IN_APP is deliberately absent: it is delivered over the real-time bus,
// never queued.
var queueNames = map[Channel]string{
	ChannelEmail: "email",
	ChannelSlack: "slack",
	ChannelSMS:   "sms",
	ChannelPush:  "push",
}

// QueueName returns the delivery-queue name for ch. ok is false for IN_APP
// and unknown channels.
func QueueName(ch Channel) (string, bool) {
	name, ok := queueNames[ch]
	return name, ok
}
