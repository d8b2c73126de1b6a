package events

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	userChannelPrefix = "channel:user:"
	// UserChannelPattern matches every per-user channel.
	UserChannelPattern = userChannelPrefix + "*"
)

func UserChannel(userID uuid.UUID) string {
	return userChannelPrefix + userID.String()
}

// UserFromChannel extracts the user id from a per-user channel name.
func UserFromChannel(channel string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("not a user channel: %q", channel)
	}
	return uuid.Parse(raw)
}
