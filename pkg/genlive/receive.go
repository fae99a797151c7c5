package genlive

import (
	"encoding/base64"
	"encoding/json"

	"go.uber.org/zap"
)

// handleMessage classifies one decoded inbound message and dispatches it to
// exactly one outcome. Branches are checked in fixed priority order and
// short-circuit on the first match.
func (c *Client) handleMessage(data []byte) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("malformed server frame dropped",
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		c.emitLog("receive.malformed", err.Error())
		return
	}

	switch {
	case msg.ToolCall != nil:
		c.emitLog("server.toolCall", *msg.ToolCall)
		c.emitToolCall(*msg.ToolCall)
	case msg.ToolCallCancellation != nil:
		c.emitLog("server.toolCallCancellation", *msg.ToolCallCancellation)
		c.emitToolCallCancellation(*msg.ToolCallCancellation)
	case msg.SetupComplete != nil:
		c.emitLog("server.setupComplete", nil)
		c.emitSetupComplete()
	case msg.ServerContent != nil:
		c.handleServerContent(*msg.ServerContent)
	default:
		// Representable rather than silent: unmatched shapes are logged and
		// surfaced on the log channel, then dropped.
		c.logger.Debug("unmatched server message dropped", zap.Int("bytes", len(data)))
		c.emitLog("receive.unmatched", json.RawMessage(data))
	}
}

// handleServerContent sub-dispatches the content variant. An interrupted
// flag suppresses everything else in the same message; turnComplete does not
// stop model-turn parts from being processed.
func (c *Client) handleServerContent(content ServerContent) {
	if content.Interrupted {
		c.emitLog("server.interrupted", nil)
		c.emitInterrupted()
		return
	}
	if content.TurnComplete {
		c.emitLog("server.turnComplete", nil)
		c.emitTurnComplete()
	}
	if content.ModelTurn != nil {
		c.assembleModelTurn(content.ModelTurn.Parts)
	}
}

// assembleModelTurn partitions the ordered part sequence of one model turn:
// each inline audio/pcm part yields one audio event with its decoded bytes,
// in encounter order, and a non-empty sequence yields exactly one content
// event carrying every original part.
func (c *Client) assembleModelTurn(parts []Part) {
	if len(parts) == 0 {
		return
	}

	for _, part := range parts {
		if !isAudioPart(part) {
			continue
		}
		pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			c.logger.Warn("inline audio decode failed",
				zap.String("mime_type", part.InlineData.MIMEType),
				zap.Error(err),
			)
			c.emitLog("receive.badAudio", err.Error())
			continue
		}
		c.emitLog("server.audio", len(pcm))
		c.emitAudio(pcm)
	}

	c.emitLog("server.content", len(parts))
	c.emitContent(ContentEvent{ModelTurn: ModelTurn{Parts: parts}})
}
