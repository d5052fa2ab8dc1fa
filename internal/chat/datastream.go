package chat

import (
	"encoding/json"
	"fmt"
	"io"
)

const (
	DataStreamHeader  = "X-Vercel-AI-Data-Stream"
	DataStreamVersion = "v1"

	finishReasonStop  = "stop"
	finishReasonError = "error"
)

// dataStreamWriter encodes a reply as AI data-stream parts, one
// "<type>:<json>\n" line per part.
type dataStreamWriter struct {
	w io.Writer
}

func (d dataStreamWriter) part(kind string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(d.w, "%s:%s\n", kind, data)
	return err
}

func (d dataStreamWriter) Start(messageID string) error {
	return d.part("f", map[string]string{"messageId": messageID})
}

func (d dataStreamWriter) Text(chunk string) error {
	return d.part("0", chunk)
}

func (d dataStreamWriter) Finish(reason string) error {
	return d.part("d", map[string]any{
		"finishReason": reason,
		"usage": map[string]int{
			"promptTokens":     0,
			"completionTokens": 0,
		},
	})
}
