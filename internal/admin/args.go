package admin

import (
	"strconv"
	"strings"
)

// usageError ответ с подсказкой по синтаксису команды
type usageError string

func (e usageError) Error() string { return string(e) }

func parseID(args, usage string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(args), 10, 64)
	if err != nil || id == 0 {
		return 0, usageError(usage)
	}
	return uint(id), nil
}

// parseAddChannel "<channel_id> <название> [| описание]"
func parseAddChannel(args string) (int64, string, string, error) {
	const usage = usageError("Использование: /add_channel <channel_id> <название> [| описание]")
	head, description, _ := strings.Cut(args, "|")
	fields := strings.Fields(head)
	if len(fields) < 2 {
		return 0, "", "", usage
	}
	externalID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, "", "", usage
	}
	return externalID, strings.Join(fields[1:], " "), strings.TrimSpace(description), nil
}

// parseAddTariff "<channel_id> <дней> <цена> <название>"
func parseAddTariff(args string) (uint, int, int, string, error) {
	const usage = usageError("Использование: /add_tariff <channel_id> <дней> <цена> <название>")
	fields := strings.Fields(args)
	if len(fields) < 4 {
		return 0, 0, 0, "", usage
	}
	channelID, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, 0, 0, "", usage
	}
	days, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, 0, "", usage
	}
	price, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, 0, "", usage
	}
	return uint(channelID), days, price, strings.Join(fields[3:], " "), nil
}

// parseAddSub "<user_id> <channel_id> <tariff_id>"
func parseAddSub(args string) (int64, uint, uint, error) {
	const usage = usageError("Использование: /add_sub <user_id> <channel_id> <tariff_id>")
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return 0, 0, 0, usage
	}
	userID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, 0, usage
	}
	channelID, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, 0, 0, usage
	}
	tariffID, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return 0, 0, 0, usage
	}
	return userID, uint(channelID), uint(tariffID), nil
}
