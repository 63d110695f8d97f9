package model

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
)

// Serve answers Request lines from r with Response lines on w using c,
// until r is exhausted or ctx is done. This is the model side of
// SubprocessClassifier.
func Serve(ctx context.Context, c Classifier, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var resp Response
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp.Error = "invalid request: " + err.Error()
		} else if probs, err := c.Predict(ctx, req.Input); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Probabilities = probs
		}

		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}
