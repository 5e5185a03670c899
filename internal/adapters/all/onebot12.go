//go:build !no_onebot12

package all

import _ "github.com/iksnae/chat-recorder/internal/adapters/onebot12"
