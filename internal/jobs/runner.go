package jobs

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

type Job interface {
	Name() string
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// TaskExecutor runs jobs on their cron schedules. A job is skipped while its previous run is active.
type TaskExecutor struct {
	cron        *cron.Cron
	cronJobs    []CronJob
	runningJobs mapset.Set[Job]
	mu          sync.Mutex
}

func NewTaskExecutor(cronJobs ...CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:        cron.New(),
		cronJobs:    cronJobs,
		runningJobs: mapset.NewThreadUnsafeSet[Job](),
	}
}

// Run schedules the jobs and starts the cron in its own goroutine.
func (t *TaskExecutor) Run() error {
	for _, job := range t.cronJobs {
		err := t.cron.AddFunc(job.Schedule(), func() {
			t.execute(job)
		})
		if err != nil {
			logrus.Errorf("failed to schedule %s: %v", job.Name(), err)
			return err
		}
		logrus.Infof("scheduled %s: %s", job.Name(), job.Schedule())
	}

	t.cron.Start()
	return nil
}

// execute runs job unless it is already running and reports whether it ran.
func (t *TaskExecutor) execute(job Job) bool {
	t.mu.Lock()
	if t.runningJobs.Contains(job) {
		t.mu.Unlock()
		logrus.Warnf("%s is still running, skipping", job.Name())
		return false
	}
	t.runningJobs.Add(job)
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.runningJobs.Remove(job)
	}()

	job.Run()
	return true
}

func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all tasks")
	t.cron.Stop()
}
