package headless

import (
	"bytes"
	"errors"
	"io"
	"os"
)

const defaultChunkSize = 4096

type captureResult struct {
	pcm []byte
	err error
}

// collectPCM drains the capture session into memory until it ends.
func collectPCM(session io.Reader, chunkSize int, done chan<- captureResult) {
	if chunkSize < 256 {
		chunkSize = defaultChunkSize
	}

	var pcm bytes.Buffer
	buf := make([]byte, chunkSize)
	for {
		n, err := session.Read(buf)
		if n > 0 {
			pcm.Write(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				err = nil
			}
			done <- captureResult{pcm: pcm.Bytes(), err: err}
			return
		}
	}
}
