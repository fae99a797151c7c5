// Package genlive provides a reusable Gemini Live websocket client implementation.
//
// It manages a single persistent connection, performs the setup handshake,
// classifies inbound server messages, reassembles streamed model output
// (text and inline PCM audio), and exposes everything through typed event
// channels with multi-subscriber dispatch.
package genlive
