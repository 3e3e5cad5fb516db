package services

import (
	"fmt"
	"strconv"
	"strings"
)

// Payload данные счёта, зашитые при его создании: "<user_id>:<channel_id>:<tariff_id>"
type Payload struct {
	UserID    int64
	ChannelID uint
	TariffID  uint
}

func (p Payload) String() string {
	return fmt.Sprintf("%d:%d:%d", p.UserID, p.ChannelID, p.TariffID)
}

func ParsePayload(s string) (Payload, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Payload{}, invalid("payload %q: want 3 fields, got %d", s, len(parts))
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Payload{}, invalid("payload %q: user id: %v", s, err)
	}
	channelID, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Payload{}, invalid("payload %q: channel id: %v", s, err)
	}
	tariffID, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Payload{}, invalid("payload %q: tariff id: %v", s, err)
	}
	return Payload{UserID: userID, ChannelID: uint(channelID), TariffID: uint(tariffID)}, nil
}
