// Package messages holds the bot's canned chat responses.
package messages

import (
	"fmt"
	"math/rand"
)

// Fixed notifications sent by the playback pipeline.
const (
	Skip          = "Skoip skoip!"
	QueueEnd      = "That's the end of the queue!"
	TooLong       = "Cannot play content longer than 15 minutes"
	NoMatch       = "No matching YouTube videos found"
	NotInVoice    = "You must be in a voice channel"
	Unsupported   = "Unsupported integration"
	QueueEmpty    = "The queue is empty"
	FetchFailed   = "Could not fetch any tracks"
	QueueShuffled = "Queue shuffled!"
	QueueCleared  = "Queue cleared!"
)

var joinMessages = []string{
	"Heyooooo, %s!",
	"Howdy-ho, %s!",
	"Skoip Skoip!",
	"Well hiiii, %s!",
	"Hulloooo, %s!",
}

var leaveMessages = []string{
	"See ya next time..! ;)",
	"Seeya!",
	"Goodbye!",
	"Leaving...",
	"Getting outta there!",
}

// RandomJoin returns a random greeting for the given display name.
func RandomJoin(userName string) string {
	m := joinMessages[rand.Intn(len(joinMessages))]
	if m == "Skoip Skoip!" {
		return m
	}
	return fmt.Sprintf(m, userName)
}

// RandomLeave returns a random farewell.
func RandomLeave() string {
	return leaveMessages[rand.Intn(len(leaveMessages))]
}
