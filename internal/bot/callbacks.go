package bot

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	cbChannel     = "channel"
	cbTariff      = "tariff"
	cbBack        = "back_to_start"
	cbRefreshSubs = "refresh_subs"
)

// callback разобранные данные inline-кнопки
type callback struct {
	kind      string
	channelID uint
	tariffID  uint
}

// parseCallback "channel:<id>", "tariff:<channel>:<tariff>", "back_to_start", "refresh_subs"
func parseCallback(data string) (callback, error) {
	parts := strings.Split(data, ":")
	cb := callback{kind: parts[0]}
	switch cb.kind {
	case cbBack, cbRefreshSubs:
		if len(parts) != 1 {
			return cb, fmt.Errorf("unexpected callback %q", data)
		}
		return cb, nil
	case cbChannel:
		if len(parts) != 2 {
			return cb, fmt.Errorf("unexpected callback %q", data)
		}
		id, err := parseUint(parts[1])
		cb.channelID = id
		return cb, err
	case cbTariff:
		if len(parts) != 3 {
			return cb, fmt.Errorf("unexpected callback %q", data)
		}
		ch, err := parseUint(parts[1])
		if err != nil {
			return cb, err
		}
		t, err := parseUint(parts[2])
		cb.channelID, cb.tariffID = ch, t
		return cb, err
	default:
		return cb, fmt.Errorf("unknown callback %q", data)
	}
}

func parseUint(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(n), nil
}
