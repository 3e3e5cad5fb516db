package admin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"paid-channel-bot/internal/logger"
)

const backupRetention = 31 * 24 * time.Hour

// DumpFunc снимает дамп базы dsn в файл
type DumpFunc func(ctx context.Context, dsn, filename string) error

// PgDump дамп Postgres в custom-формате
func PgDump(ctx context.Context, dsn, filename string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	out, err := exec.CommandContext(ctx, "pg_dump", dsn, "-Fc", "-f", filename).CombinedOutput()
	if err != nil {
		return fmt.Errorf("pg_dump: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Backup резервные копии по команде администратора и по расписанию
type Backup struct {
	dsn      string
	dir      string
	dump     DumpFunc
	notifier *logger.Notifier
	now      func() time.Time
	log      *zap.Logger
}

func NewBackup(dsn, dir string, dump DumpFunc, notifier *logger.Notifier, log *zap.Logger) *Backup {
	if dump == nil {
		dump = PgDump
	}
	return &Backup{dsn: dsn, dir: dir, dump: dump, notifier: notifier, now: time.Now, log: log.Named("backup")}
}

// Create пишет дамп в каталог бэкапов и возвращает путь к файлу
func (b *Backup) Create(ctx context.Context, prefix string) (string, error) {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	filename := filepath.Join(b.dir, prefix+"_"+b.now().Format("20060102_150405")+".dump")
	if err := b.dump(ctx, b.dsn, filename); err != nil {
		_ = os.Remove(filename)
		return "", err
	}
	b.log.Info("backup created", zap.String("file", filename))
	return filename, nil
}

// Spec ежедневно в 03:00
func (b *Backup) Spec() string { return "0 3 * * *" }

// Run автоматический бэкап с чисткой старых копий
func (b *Backup) Run() {
	if _, err := b.Create(context.Background(), "autobackup"); err != nil {
		b.log.Error("auto backup failed", zap.Error(err))
		b.notifier.Alert("Ошибка автоматического резервного копирования: " + err.Error())
		return
	}
	removed, err := CleanOldBackups(b.dir, backupRetention, b.now())
	if err != nil {
		b.log.Warn("backup cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		b.log.Info("old backups removed", zap.Int("count", removed))
	}
}

// CleanOldBackups удаляет дампы старше maxAge и возвращает их число
func CleanOldBackups(dir string, maxAge time.Duration, now time.Time) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*backup_*.dump"))
	if err != nil {
		return 0, err
	}
	cutoff := now.Add(-maxAge)
	removed := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(f); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
