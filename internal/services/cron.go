package services

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job периодическая задача со своим расписанием
type Job interface {
	cron.Job
	Spec() string
}

// NewCron планировщик в часовом поясе бота. Следующий запуск задачи пропускается,
// пока не завершился предыдущий; паника в задаче логируется и не роняет процесс.
func NewCron(loc *time.Location, log *zap.Logger) *cron.Cron {
	if loc == nil {
		loc = time.UTC
	}
	l := cronLogger{log: log.Named("cron").Sugar()}
	return cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

// Schedule регистрирует задачи в планировщике; идентификаторы в порядке jobs
func Schedule(c *cron.Cron, jobs ...Job) ([]cron.EntryID, error) {
	ids := make([]cron.EntryID, 0, len(jobs))
	for _, j := range jobs {
		id, err := c.AddJob(j.Spec(), j)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RunNow запускает задачу вне расписания через те же обёртки, что и cron:
// запуск пропускается, если задача уже идёт. Stop такие запуски не ждёт, поэтому их учитывает wg.
func RunNow(c *cron.Cron, id cron.EntryID, wg *sync.WaitGroup) {
	e := c.Entry(id)
	if e.WrappedJob == nil {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.WrappedJob.Run()
	}()
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
