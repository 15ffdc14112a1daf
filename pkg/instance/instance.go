package instance

import "os"

// GetID names the running process for log correlation. Heroku dynos set
// DYNO; workers elsewhere set WORKER_ID.
func GetID() string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
