package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent []sentMessage
	fail map[int64]bool
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	if f.fail[chatID] {
		return errors.New("blocked")
	}
	f.sent = append(f.sent, sentMessage{chatID, text})
	return nil
}

func TestNewWritesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "bot.log")
	log, closeLog, err := New("debug", file)
	require.NoError(t, err)

	LogAdminAction(log, 7, "add_channel", "-100 News")
	closeLog()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"admin_action"`)
	assert.Contains(t, string(data), `"action":"add_channel"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New("loud", "")
	assert.Error(t, err)
}

func TestCloseReleasesLogFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bot.log")
	log, closeLog, err := New("info", file)
	require.NoError(t, err)
	log.Info("before close")
	closeLog()

	// после закрытия запись в файл не попадает, а процесс не падает
	log.Info("after close")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "before close")
	assert.NotContains(t, string(data), "after close")
	require.NoError(t, os.Remove(file))
}

func TestNewWithoutFileHasNoopClose(t *testing.T) {
	log, closeLog, err := New("", "")
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.NotPanics(t, closeLog)
}

func TestNotifyAdminsContinuesAfterFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sender := &fakeSender{fail: map[int64]bool{1: true}}
	n := NewNotifier(sender, []int64{1, 2}, zap.New(core))

	n.NotifyAdmins(context.Background(), "hello")

	assert.Equal(t, []sentMessage{{2, "hello"}}, sender.sent)
	assert.Equal(t, 1, logs.FilterMessage("admin notification failed").Len())
}

func TestNotifyOnPanic(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, []int64{9}, zap.NewNop())

	func() {
		defer n.NotifyOnPanic("update worker")
		panic("boom")
	}()

	require.Len(t, sender.sent, 1)
	assert.True(t, strings.HasPrefix(sender.sent[0].text, "[ALERT] Panic in update worker: boom"))
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() { n.NotifyAdmins(context.Background(), "x") })
}
