// FILE: env.go
// Package main – Environment helpers for the trading engine.
//
// This file provides:
//   1) Small helpers to read environment variables with sane defaults
//      (strings, ints, floats, bools, minute durations).
//   2) loadBotEnv: hydrates the process env from a .env file via godotenv
//      without overriding variables that are already exported.
//
// Notes:
//   • The engine never requires `export $(cat .env ...)`.
//   • The IB gateway sidecar keeps its own credentials file; nothing secret
//     is expected here beyond host/port/clientId.

package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// --------- Env helpers (used across files) ---------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvMinutes reads an integer env var expressed in minutes.
func getEnvMinutes(key string, defMinutes int) time.Duration {
	return time.Duration(getEnvInt(key, defMinutes)) * time.Minute
}

// --------- .env loader ---------

// loadBotEnv hydrates the process environment from BOT_ENV_FILE (default
// ".env"). Already-exported variables win; a missing file is not an error.
func loadBotEnv() {
	path := getEnv("BOT_ENV_FILE", ".env")
	if _, err := os.Stat(path); err != nil {
		logrus.Infof("env: %s not found, relying on process env", path)
		return
	}
	if err := godotenv.Load(path); err != nil {
		logrus.Warnf("env: could not load %s: %v", path, err)
		return
	}
	logrus.Infof("env: loaded %s", path)
}
