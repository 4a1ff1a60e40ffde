package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger.
// JSON output is used in production or when format is "json".
func Setup(level, format string, production bool) {
	logrus.SetOutput(os.Stdout)

	if strings.EqualFold(format, "json") || (format == "" && production) {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		logrus.WithField("level", level).Warn("unknown log level, defaulting to info")
	}
	logrus.SetLevel(lvl)
}

// Component returns a logger tagged with the component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
