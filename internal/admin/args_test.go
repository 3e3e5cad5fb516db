package admin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddChannel(t *testing.T) {
	id, name, desc, err := parseAddChannel("-1001234567890 Closed Club | Private analytics")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), id)
	assert.Equal(t, "Closed Club", name)
	assert.Equal(t, "Private analytics", desc)

	_, name, desc, err = parseAddChannel("-100 News")
	require.NoError(t, err)
	assert.Equal(t, "News", name)
	assert.Empty(t, desc)

	for _, bad := range []string{"", "-100", "abc News"} {
		_, _, _, err := parseAddChannel(bad)
		var usage usageError
		assert.True(t, errors.As(err, &usage), bad)
	}
}

func TestParseAddTariff(t *testing.T) {
	ch, days, price, name, err := parseAddTariff("3 30 250 Один месяц")
	require.NoError(t, err)
	assert.Equal(t, uint(3), ch)
	assert.Equal(t, 30, days)
	assert.Equal(t, 250, price)
	assert.Equal(t, "Один месяц", name)

	for _, bad := range []string{"3 30 250", "x 30 250 M", "3 x 250 M", "3 30 x M", "-3 30 250 M"} {
		_, _, _, _, err := parseAddTariff(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseAddSub(t *testing.T) {
	user, ch, tariff, err := parseAddSub("123456 1 2")
	require.NoError(t, err)
	assert.Equal(t, int64(123456), user)
	assert.Equal(t, uint(1), ch)
	assert.Equal(t, uint(2), tariff)

	for _, bad := range []string{"", "1 2", "1 2 3 4", "a 1 2", "1 b 2", "1 2 c"} {
		_, _, _, err := parseAddSub(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID(" 42 ", "usage")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"", "0", "-1", "x"} {
		_, err := parseID(bad, "usage")
		assert.EqualError(t, err, "usage", bad)
	}
}
