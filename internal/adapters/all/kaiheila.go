//go:build !no_kaiheila

package all

import _ "github.com/iksnae/chat-recorder/internal/adapters/kaiheila"
