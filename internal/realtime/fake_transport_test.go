package realtime

import (
	"sync"
	"time"
)

type fakeTransport struct {
	mu       sync.Mutex
	frames   [][]byte
	pings    int
	closed   bool
	writeErr error
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if data == nil {
		f.pings++
		return nil
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, frame := range f.frames {
		out = append(out, string(frame))
	}
	return out
}

func (f *fakeTransport) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// drain 读出已入队但未写出的消息
func drain(s *Session) []string {
	var out []string
	for {
		select {
		case frame := <-s.send:
			out = append(out, string(frame))
		default:
			return out
		}
	}
}
