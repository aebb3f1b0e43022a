package main

import (
	"encoding/json"
	"os"
	"time"
)

const (
	defaultUsageFile    = "elevenlabs_usage.json"
	defaultMonthlyLimit = 9000
)

// usage tracks ElevenLabs characters spent in the current calendar month.
// It is kept on disk because every request runs in a new process.
type usage struct {
	Month string `json:"month"`
	Chars int    `json:"chars"`
}

func monthOf(t time.Time) string { return t.Format("2006-01") }

// loadUsage reads the counter at path. A missing or unreadable file, or one
// from an earlier month, starts a fresh count.
func loadUsage(path string, now time.Time) usage {
	fresh := usage{Month: monthOf(now)}

	data, err := os.ReadFile(path)
	if err != nil {
		return fresh
	}
	var u usage
	if err := json.Unmarshal(data, &u); err != nil || u.Month != fresh.Month {
		return fresh
	}
	return u
}

// allows reports whether n more characters stay under limit.
func (u usage) allows(n, limit int) bool {
	return u.Chars+n < limit
}

func saveUsage(path string, u usage) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
