// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

// TopicPrefix is the first segment of every session topic.
const TopicPrefix = "namewhisk"

// Topics are the four per-channel topic names of a session.
type Topics struct {
	Connected string `json:"connected"`
	Request   string `json:"request"`
	Response  string `json:"response"`
	End       string `json:"end"`
}

// NewTopics derives the topic names for channelID.
func NewTopics(channelID string) Topics {
	base := TopicPrefix + "/" + channelID + "/"
	return Topics{
		Connected: base + "connected",
		Request:   base + "request",
		Response:  base + "response",
		End:       base + "end",
	}
}
