//go:build !no_satori

package all

import _ "github.com/iksnae/chat-recorder/internal/adapters/satori"
