package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/KyungWonPark/faroi/internal/config"
	"github.com/KyungWonPark/faroi/internal/extract"
	"github.com/natefinch/lumberjack"
	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger. When a log file is configured,
// messages go to stderr and to a rotating file.
func Setup(cfg *config.Config) error {
	level := cfg.Logging.Level
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("bad log level %q: %v", level, err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.Logging.File == "" {
		log.SetOutput(os.Stderr)
		return nil
	}

	l := &lumberjack.Logger{
		Filename: cfg.Logging.File,
		MaxSize:  cfg.Logging.MaxSize, // megabytes
		MaxAge:   cfg.Logging.MaxAge,  // days
	}
	log.SetOutput(io.MultiWriter(os.Stderr, l))
	log.WithField("file", cfg.Logging.File).Debug("Sending log messages to file")

	return nil
}

// Observer turns extractor events into log entries
func Observer(logger log.FieldLogger) extract.Observer {
	return func(ev extract.Event) {
		entry := logger.WithField("event", ev.Kind.String())
		if ev.Subject != "" {
			entry = entry.WithField("subject", ev.Subject)
		}
		if ev.Mask != "" {
			entry = entry.WithField("mask", ev.Mask)
		}
		if ev.Group != "" {
			entry = entry.WithField("group", ev.Group)
		}
		if ev.Path != "" {
			entry = entry.WithField("path", ev.Path)
		}

		switch ev.Kind {
		case extract.SubjectFailed:
			entry.WithError(ev.Err).Error("Subject left out")
		case extract.GatherStarted:
			entry.WithField("subjects", ev.Count).Info("Started Gathering Data")
		case extract.GatherFinished:
			entry.WithField("subjects", ev.Count).Info("Finished Gathering Data")
		case extract.MasksLoaded:
			entry.WithField("masks", ev.Count).Info("Loaded masks")
		case extract.GroupWritten:
			entry.WithField("rows", ev.Count).Infof("Writing %s Data", ev.Group)
		case extract.RegionWritten:
			entry.WithField("voxels", ev.Count).Debug("Wrote region table")
		default:
			entry.WithField("count", ev.Count).Debug(ev.Kind.String())
		}
	}
}
