package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	tr := New(nil)
	s := tr.State()
	if s.Tick != 0 || s.BPM != 120 || s.Playing || s.Looping || s.LoopStart != 0 || s.LoopEnd != 15360 {
		t.Errorf("State() = %+v", s)
	}
}

func TestClamps(t *testing.T) {
	tr := New(nil)
	tr.SetPosition(-100)
	if tr.Position() != 0 {
		t.Errorf("Position() = %d, want 0", tr.Position())
	}
	tr.SetTempo(0.2)
	if tr.Tempo() != 1 {
		t.Errorf("Tempo() = %v, want 1", tr.Tempo())
	}
}

func TestSetLoopRange(t *testing.T) {
	tr := New(nil)
	tests := []struct {
		start, end int64
		wantErr    bool
		want       LoopRange
	}{
		{0, 3840, false, LoopRange{0, 3840}},
		{-50, 960, false, LoopRange{0, 960}},
		{960, 960, true, LoopRange{0, 960}},
		{960, 100, true, LoopRange{0, 960}},
	}
	for _, tt := range tests {
		err := tr.SetLoopRange(tt.start, tt.end)
		if (err != nil) != tt.wantErr {
			t.Errorf("SetLoopRange(%d, %d) error = %v, wantErr %v", tt.start, tt.end, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidLoopRange) {
			t.Errorf("error = %v, want ErrInvalidLoopRange", err)
		}
		if got := tr.LoopRange(); got != tt.want {
			t.Errorf("LoopRange() = %+v, want %+v", got, tt.want)
		}
	}
}

func TestStatusCallback(t *testing.T) {
	tr := New(nil)
	var got []bool
	tr.OnStatusChanged(func(p bool) { got = append(got, p) })
	tr.Start()
	tr.Start()
	tr.Stop()
	tr.Toggle()
	tr.SetPlaying(true)
	if len(got) != 3 || !got[0] || got[1] || !got[2] {
		t.Errorf("callbacks = %v, want [true false true]", got)
	}
}

func TestAdvance(t *testing.T) {
	tr := New(nil)
	if got := tr.Advance(time.Second); got != 0 {
		t.Errorf("Advance() while stopped = %d, want 0", got)
	}
	tr.Start()
	// 120 bpm = 1920 ticks per second
	if got := tr.Advance(500 * time.Millisecond); got != 960 {
		t.Errorf("Advance(500ms) = %d, want 960", got)
	}
	var pos int64
	tr.OnPositionChanged(func(tick int64) { pos = tick })
	for i := 0; i < 1920; i++ {
		tr.Advance(time.Second / 1920 / 2)
	}
	if got := tr.Position(); got < 1919 || got > 1920 {
		t.Errorf("Position() after fractional steps = %d, want about 1920", got)
	}
	if pos != tr.Position() {
		t.Errorf("OnPositionChanged saw %d, want %d", pos, tr.Position())
	}
}

func TestLoopWrap(t *testing.T) {
	tr := New(nil)
	if err := tr.SetLoopRange(0, 3840); err != nil {
		t.Fatal(err)
	}
	tr.SetLooping(true)
	tr.Start()
	tr.SetPosition(3000)
	// 1 s at 120 bpm is 1920 ticks: 3000+1920 = 4920 -> 1080
	if got := tr.Advance(time.Second); got != 1080 {
		t.Errorf("Advance() = %d, want 1080", got)
	}
	for i := 0; i < 100; i++ {
		got := tr.Advance(777 * time.Millisecond)
		if got < 0 || got >= 3840 {
			t.Fatalf("Advance() = %d, outside [0, 3840)", got)
		}
	}
}

// A loop that does not start at zero must wrap relative to its start.
func TestLoopWrapOffset(t *testing.T) {
	tr := New(nil)
	tr.SetLoopRange(960, 2880)
	tr.SetLooping(true)
	tr.Start()
	tr.SetPosition(2800)
	// 2800 + 1920 = 4720; (4720-960) % 1920 = 1840; 960 + 1840 = 2800
	if got := tr.Advance(time.Second); got != 2800 {
		t.Errorf("Advance() = %d, want 2800", got)
	}
	tr.SetPosition(2000)
	if got := tr.Advance(500 * time.Millisecond); got != 1040 {
		t.Errorf("Advance() = %d, want 1040", got)
	}
}

func TestConcurrentReaders(t *testing.T) {
	tr := New(nil)
	tr.SetLoopRange(0, 3840)
	tr.SetLooping(true)
	tr.Start()
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					if p := tr.Position(); p < 0 || p >= 3840 {
						t.Errorf("reader saw %d", p)
						return
					}
					_ = tr.Tempo()
				}
			}
		}()
	}
	for i := 0; i < 2000; i++ {
		tr.Advance(3 * time.Millisecond)
		if i%100 == 0 {
			tr.SetTempo(float64(60 + i%200))
		}
	}
	close(stop)
	wg.Wait()
}

func TestRun(t *testing.T) {
	tr := New(nil)
	tr.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err := tr.Run(ctx, 5*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
	if tr.Position() <= 0 {
		t.Errorf("Position() = %d, want > 0", tr.Position())
	}
}
