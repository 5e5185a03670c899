//go:build !no_telegram

package all

import _ "github.com/iksnae/chat-recorder/internal/adapters/telegram"
