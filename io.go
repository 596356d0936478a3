package main

import (
	"fmt"
	"io"
	"os"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// output receives command results. It is the app's writer.
	output io.Writer = os.Stdout

	logfileHandle *os.File
)

// InitLogging configures logrus from the global flags. With a log file, all
// output is also recorded there without colours.
func InitLogging(debug, quiet bool, logfile string) error {
	switch {
	case debug:
		log.SetLevel(log.DebugLevel)
	case quiet:
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	if logfile == "" {
		return nil
	}
	f, err := os.OpenFile(logfile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return errors.WrapIfWithDetails(err, "open log file", "path", logfile)
	}
	logfileHandle = f
	log.SetOutput(f)
	log.SetFormatter(&log.TextFormatter{DisableColors: true, FullTimestamp: true})
	return nil
}

// CloseLogFile cleans up any file handles associated with the log file.
func CloseLogFile() {
	if logfileHandle != nil {
		logfileHandle.Close()
		logfileHandle = nil
	}
}

// Printf prints command output, and records it in the log file if there is
// one.
func Printf(format string, a ...interface{}) {
	fmt.Fprintf(output, format, a...)
	if logfileHandle != nil {
		log.Infof(format, a...)
	}
}

// Dprintf prints verbose output only if debug mode is enabled
func Dprintf(format string, a ...interface{}) {
	log.Debugf(format, a...)
}

// Errorf logs an error message.
func Errorf(err error, format string, a ...interface{}) {
	if err != nil {
		log.WithError(err).Errorf(format, a...)
		return
	}
	log.Errorf(format, a...)
}

// Fatalf logs an error message and exits the program with a non-zero exit
// code.
func Fatalf(err error, format string, a ...interface{}) {
	Errorf(err, format, a...)
	CloseLogFile()
	os.Exit(1)
}
