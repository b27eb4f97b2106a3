package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/parkbase/parkbot/internal/chat"
	"github.com/parkbase/parkbot/internal/log"
)

// streamFailedMessage is the client-facing body when generation fails.
const streamFailedMessage = "Failed to stream response"

// Assistant produces a reply for a conversation history.
type Assistant interface {
	Reply(ctx context.Context, history []chat.Message, cb chat.StreamCallback) (*chat.Response, error)
}

// chatHandler handles chat endpoints.
//
//   - POST /api/chat        - Synchronous chat (JSON request/response)
//   - POST /api/chat/stream - Streaming chat (SSE)
type chatHandler struct {
	assistant Assistant
	logger    log.Logger
}

// chatRequest is the client request: full conversation history, the last
// entry being the user's new message.
type chatRequest struct {
	Messages []chat.Message `json:"messages"`
}

// chatResponse is the synchronous reply.
type chatResponse struct {
	Response string `json:"response"`
}

// decodeChatRequest parses and validates the request body.
func decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, false
	}
	if len(req.Messages) == 0 {
		return req, false
	}
	last := req.Messages[len(req.Messages)-1]
	if strings.TrimSpace(last.Content) == "" {
		return req, false
	}
	return req, true
}

// send handles synchronous chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		writeError(w, http.StatusBadRequest, "messages are required", h.logger)
		return
	}

	resp, err := h.assistant.Reply(r.Context(), req.Messages, nil)
	if err != nil {
		h.logger.Error("chat reply failed", "error", err)
		writeError(w, http.StatusInternalServerError, streamFailedMessage, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: resp.FinalText}, h.logger)
}

// SSE event types for chat streaming.
const (
	EventChunk = "chunk" // Partial response text
	EventDone  = "done"  // Stream completed successfully
	EventError = "error" // Error occurred during streaming
)

// ChunkPayload is the SSE data payload for streaming text chunks.
type ChunkPayload struct {
	Text string `json:"text"`
}

// DonePayload is the SSE data payload when streaming completes.
type DonePayload struct {
	Response string `json:"response"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Message string `json:"message"`
}

// stream handles SSE streaming chat. Validation failures return plain HTTP
// errors; once streaming begins, failures surface as error events.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		writeError(w, http.StatusBadRequest, "messages are required", h.logger)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	streamed := false

	callback := func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
		text := chunk.Text()
		if text == "" {
			return nil
		}
		streamed = true
		return writeEvent(w, flusher, EventChunk, ChunkPayload{Text: text})
	}

	resp, err := h.assistant.Reply(ctx, req.Messages, callback)
	if err != nil {
		h.logger.Error("chat stream failed", "error", err, "streamed", streamed)
		_ = writeEvent(w, flusher, EventError, ErrorPayload{Message: streamFailedMessage})
		return
	}

	_ = writeEvent(w, flusher, EventDone, DonePayload{Response: resp.FinalText})
	h.logger.Debug("SSE stream completed", "streamed", streamed)
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
