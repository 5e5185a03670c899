//go:build !no_onebot11

package all

import _ "github.com/iksnae/chat-recorder/internal/adapters/onebot11"
