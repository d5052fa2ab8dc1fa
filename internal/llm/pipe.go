package llm

import (
	"context"
	"io"
	"sync"
)

type emitFunc func(chunk string) error

// pipe runs a producer in its own goroutine and hands its chunks to Recv.
type pipe struct {
	chunks    chan string
	err       error
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newPipe(ctx context.Context, cancel context.CancelFunc, produce func(ctx context.Context, emit emitFunc) error) *pipe {
	p := &pipe{
		chunks: make(chan string),
		cancel: cancel,
	}

	go func() {
		defer close(p.chunks)
		p.err = produce(ctx, func(chunk string) error {
			select {
			case p.chunks <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	return p
}

func (p *pipe) Recv() (string, error) {
	chunk, ok := <-p.chunks
	if ok {
		return chunk, nil
	}
	if p.err != nil {
		return "", p.err
	}
	return "", io.EOF
}

func (p *pipe) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		for range p.chunks {
		}
	})
	return nil
}
