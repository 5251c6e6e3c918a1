package workflow

import (
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/safety_backend/models"
)

// JobNotifier is the fire-and-forget sink for job outcome notifications. The
// delivery subsystem (email, chat) lives outside this service; the default
// implementation just logs.
type JobNotifier interface {
	JobCompleted(jobName string, run *models.JobRun)
	JobFailed(jobName string, run *models.JobRun, err error)
}

type logNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) JobNotifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) JobCompleted(jobName string, run *models.JobRun) {
	n.logger.WithFields(logrus.Fields{
		"job":       jobName,
		"runId":     run.Id,
		"processed": run.ItemsProcessed,
		"succeeded": run.ItemsSucceeded,
		"failed":    run.ItemsFailed,
	}).Info("job completed")
}

func (n *logNotifier) JobFailed(jobName string, run *models.JobRun, err error) {
	n.logger.WithFields(logrus.Fields{
		"job":   jobName,
		"runId": run.Id,
	}).Error("job failed: " + err.Error())
}
