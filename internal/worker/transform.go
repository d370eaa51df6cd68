// internal/worker/transform.go
package worker

import (
	"strconv"
	"time"

	"job-dispatch/internal/domain"
)

// Annotate stamps the job id with the time it was processed. Requests from the
// periodic dispatcher are marked "Dispatched-at"; any other origin gets "Done-at".
func Annotate(req domain.JobRequest, processedAt time.Time) string {
	millis := strconv.FormatInt(processedAt.UnixMilli(), 10)
	if req.OriginTag == domain.OriginRobot {
		return req.JobID + ". Dispatched-at " + millis
	}
	return req.JobID + ". Done-at " + millis
}
