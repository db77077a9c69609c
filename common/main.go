// Package common holds the small pieces shared by every other package in this
// client: the service identity and process-wide logging setup.
package common

import (
	"github.com/sirupsen/logrus"
)

// ServiceName is the name this client reports in its logs and traces.
const ServiceName = "notification-client"

// InitLogging configures the process-wide logger. Unrecognized level names
// fall back to info.
func InitLogging(levelName string) {
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
}
