package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data    string
		want    callback
		wantErr bool
	}{
		{data: "channel:3", want: callback{kind: cbChannel, channelID: 3}},
		{data: "tariff:3:7", want: callback{kind: cbTariff, channelID: 3, tariffID: 7}},
		{data: "back_to_start", want: callback{kind: cbBack}},
		{data: "refresh_subs", want: callback{kind: cbRefreshSubs}},
		{data: "channel:", wantErr: true},
		{data: "channel:0", wantErr: true},
		{data: "tariff:3", wantErr: true},
		{data: "tariff:3:x", wantErr: true},
		{data: "back_to_start:1", wantErr: true},
		{data: "buy_server_1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := parseCallback(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
