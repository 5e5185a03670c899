//go:build !no_discord

package all

import _ "github.com/iksnae/chat-recorder/internal/adapters/discord"
