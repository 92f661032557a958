package main

import "errors"

var (
	ErrMissingBotToken = errors.New("TG_BOT_TOKEN environment variable is required")
	ErrMissingChatIDs  = errors.New("CHAT_IDS environment variable is required")
	ErrAllSourcesDown  = errors.New("all listing sources failed")
	ErrNoRoute         = errors.New("router returned no route")
)
