// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

const (
	EnvVerbose        = "VERBOSE"          // print extra information e.g. line number)
	EnvDisableLogTime = "DISABLE_LOG_TIME" // disable timestamp in logs
	EnvDebug          = "DEBUG"            // enable debug messages
)

func init() {
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		DisableTimestamp: evalEnv(EnvDisableLogTime),
	})
	if evalEnv(EnvVerbose) {
		logrus.SetReportCaller(true)
	}
	if evalEnv(EnvDebug) {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// evalEnv returns the boolean value of the env variable with the given key
func evalEnv(key string) bool {
	return os.Getenv(key) == "1" || os.Getenv(key) == "true" || os.Getenv(key) == "TRUE"
}
