// Package all links every adapter package into the binary. Each adapter
// lives in its own file behind a no_<adapter> build tag, so a build can drop
// an adapter and the registry then reports it as not installed.
package all
