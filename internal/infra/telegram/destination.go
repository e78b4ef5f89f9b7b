package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// Destination is a chat addressed either by numeric id or by public @handle.
type Destination struct {
	ChatID   int64
	Username string
}

func ParseDestination(raw string) (Destination, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Destination{}, fmt.Errorf("destination is empty")
	}

	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		if id == 0 {
			return Destination{}, fmt.Errorf("destination chat id is zero")
		}
		return Destination{ChatID: id}, nil
	}

	handle := strings.TrimPrefix(value, "@")
	if handle == "" || strings.ContainsAny(handle, " /@") {
		return Destination{}, fmt.Errorf("invalid destination %q", raw)
	}
	return Destination{Username: "@" + handle}, nil
}

func ChatDestination(chatID int64) Destination {
	return Destination{ChatID: chatID}
}

func (d Destination) IsZero() bool {
	return d.ChatID == 0 && d.Username == ""
}

func (d Destination) String() string {
	if d.Username != "" {
		return d.Username
	}
	return strconv.FormatInt(d.ChatID, 10)
}
