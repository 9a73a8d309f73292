package util

import "github.com/sirupsen/logrus"

// ContinueOrFatal stops the process on startup errors.
func ContinueOrFatal(err error) {
	if err != nil {
		logrus.WithError(err).Fatal("h-ats cannot continue")
	}
}
