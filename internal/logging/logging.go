package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields is a set of structured log fields.
type Fields = logrus.Fields

var root = logrus.New()

// Setup configures the process-wide logger. format is "json" or "text".
func Setup(service, level, format string) {
	root.SetOutput(os.Stdout)

	if strings.EqualFold(format, "text") {
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		root.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	root.SetLevel(lvl)

	root.WithFields(Fields{"service": service, "level": lvl.String()}).Debug("Logger configured")
}

// New returns a logger tagged with the given component name.
func New(component string) *logrus.Entry {
	return root.WithField("component", component)
}
