package onebot11

import "github.com/iksnae/chat-recorder/internal/adapters"

func init() {
	adapters.MustRegister(Codec, Resolver{})
}
