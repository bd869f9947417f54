package component

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/wire"
)

// responseDepth buffers responses so a slow owner does not stall the entry.
const responseDepth = 16

// Serve runs entry bound to r (command frames) and w (response frames).
// It returns when the entry returns. When r reaches EOF the entry's input
// channel is closed; entries are expected to return then.
//
// Commands are handed over one at a time on an unbuffered channel. Each
// command the entry receives, and each malformed frame, is acked on w before
// the next frame is read. A command read but never received by the entry is
// not acked, so the owner keeps it for the next worker.
func Serve(ctx context.Context, entry Entry, r io.Reader, w io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan domain.Command)
	out := make(chan domain.Response, responseDepth)
	enc := wire.NewEncoder(w)

	// handoff is held while a frame is handed over and acked.
	var handoff sync.Mutex
	entryDone := make(chan struct{})

	// 1. Reader: stdin frames -> in
	go func() {
		defer close(in)
		dec := wire.NewDecoder(r)
		for {
			cmd, err := dec.ReadCommand()
			if err != nil {
				var frameErr *wire.FrameError
				if errors.As(err, &frameErr) {
					logger.Warn("Skipping malformed command frame", "err", err)
					handoff.Lock()
					err := enc.WriteAck()
					handoff.Unlock()
					if err != nil {
						logger.Error("Ack failed", "err", err)
						return
					}
					continue
				}
				if !errors.Is(err, io.EOF) {
					logger.Error("Command stream failed", "err", err)
				}
				return
			}
			if !deliver(&handoff, in, cmd, entryDone, enc, logger) {
				return
			}
		}
	}()

	// 2. Writer: out -> stdout frames
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for resp := range out {
			if err := enc.WriteResponse(resp); err != nil {
				logger.Error("Response stream failed", "err", err)
				cancel()
				// Keep draining so the entry never blocks on a dead pipe.
				for range out {
				}
				return
			}
		}
	}()

	// 3. Entry runs on the calling goroutine
	err := entry(ctx, in, out)
	close(entryDone)
	// Wait for an ack in flight before the process is allowed to exit.
	handoff.Lock()
	handoff.Unlock()
	close(out)
	wg.Wait()
	return err
}

// deliver hands cmd to the entry and acks it. It reports false once the
// entry has returned without taking cmd, or when the ack cannot be written.
func deliver(handoff *sync.Mutex, in chan<- domain.Command, cmd domain.Command, entryDone <-chan struct{}, enc *wire.Encoder, logger *slog.Logger) bool {
	handoff.Lock()
	defer handoff.Unlock()

	select {
	case in <- cmd:
	case <-entryDone:
		logger.Debug("Command not taken", "command", cmd.Name)
		return false
	}
	if err := enc.WriteAck(); err != nil {
		logger.Error("Ack failed", "command", cmd.Name, "err", err)
		return false
	}
	return true
}
