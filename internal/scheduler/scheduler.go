// Package scheduler runs the periodic capture, encode and broadcast loops.
// One video loop and one audio loop run per streaming session; both start
// when the first client connects and stop when the last one leaves. Capture
// device handles live inside the loops and are released when the stop
// signal fires, so a restart always constructs fresh handles.
package scheduler

import (
	"encoding/base64"
	"errors"
	"log"
	"sync"
	"time"

	"hostcast/internal/audio"
	"hostcast/internal/capture"
	"hostcast/internal/encode"
	"hostcast/internal/geometry"
	"hostcast/internal/protocol"
	"hostcast/internal/session"
	"hostcast/internal/types"
)

// maxAudioErrors is the consecutive read-failure threshold after which the
// audio feature is disabled for the rest of the streaming run.
const maxAudioErrors = 10

// Broadcaster is the transport seen from the scheduler: emit a named event
// to one client or to all of them.
type Broadcaster interface {
	Broadcast(event string, payload any)
	SendTo(sessionID, event string, payload any)
}

// CapturerFactory creates a screen capturer for one streaming run.
type CapturerFactory func() (types.ScreenCapturer, error)

// AudioFactory creates a loopback audio capturer for one streaming run.
type AudioFactory func() (types.AudioCapturer, error)

// Config holds the streaming parameters and device factories.
type Config struct {
	FPS            int
	TargetWidth    int
	Quality        int
	VirtualQuality int
	Stats          bool

	NewCapturer CapturerFactory
	NewAudio    AudioFactory

	// Cursor reports the host cursor position for extended-display
	// compositing. Optional; without it virtual frames carry no cursor.
	Cursor func() (x, y int)
}

type Scheduler struct {
	cfg      Config
	registry *session.Registry
	out      Broadcaster

	// runMu serializes Start and Stop so a stop always finishes releasing
	// the previous run's handles before the next run begins. lastEdge
	// remembers the newest registry transition applied; an older edge
	// arriving late (its goroutine lost the race to a later transition's)
	// is discarded instead of acting on a state that no longer exists.
	runMu    sync.Mutex
	lastEdge uint64
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(cfg Config, registry *session.Registry, out Broadcaster) *Scheduler {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.VirtualQuality <= 0 {
		cfg.VirtualQuality = 75
	}
	return &Scheduler{cfg: cfg, registry: registry, out: out}
}

// Start begins the video and audio loops. edge is the registry transition
// that triggered the call (0 forces an unconditional start); an edge older
// than one already applied is discarded. Calling Start while a run is alive
// keeps that run and re-announces the host screen, since the stop edge the
// run belonged to has been superseded.
func (s *Scheduler) Start(edge uint64) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if edge != 0 {
		if edge <= s.lastEdge {
			return
		}
		s.lastEdge = edge
	}
	if s.stop != nil {
		if host := s.registry.HostScreen(); host.Width > 0 {
			s.out.Broadcast(protocol.EventScreenInfo, protocol.ScreenInfo{Width: host.Width, Height: host.Height})
		}
		return
	}
	stop := make(chan struct{})

	cap, err := s.cfg.NewCapturer()
	if err != nil {
		log.Printf("scheduler: capture init failed, video disabled: %v", err)
	} else {
		host := geometry.Size{Width: cap.Width(), Height: cap.Height()}
		s.registry.SetHostScreen(host)
		s.out.Broadcast(protocol.EventScreenInfo, protocol.ScreenInfo{Width: host.Width, Height: host.Height})
		s.wg.Add(1)
		go s.videoLoop(cap, stop)
	}

	ac, err := s.cfg.NewAudio()
	if err != nil {
		log.Printf("scheduler: audio disabled: %v", err)
	} else {
		s.wg.Add(1)
		go s.audioLoop(ac, stop)
	}

	s.stop = stop
	log.Printf("scheduler: streaming started (%d fps, target width %d)", s.cfg.FPS, s.cfg.TargetWidth)
}

// Stop signals both loops and waits until they have released their device
// handles. edge follows the same rules as in Start: a stale stop (a newer
// start already claimed the run) is discarded, 0 stops unconditionally.
func (s *Scheduler) Stop(edge uint64) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if edge != 0 {
		if edge <= s.lastEdge {
			return
		}
		s.lastEdge = edge
	}
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
	log.Printf("scheduler: streaming stopped")
}

// Running reports whether a streaming run is active.
func (s *Scheduler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.stop != nil
}

// cursorMemo is the per-client state that decides whether an extended
// display's frame must be regenerated this tick.
type cursorMemo struct {
	width     int
	height    int
	position  geometry.Position
	name      string
	hasCursor bool
	rx        float64
	ry        float64
}

func (s *Scheduler) videoLoop(cap types.ScreenCapturer, stop <-chan struct{}) {
	defer s.wg.Done()
	defer cap.Close()

	mirror := encode.New(s.cfg.TargetWidth, s.cfg.Quality)
	virtual := encode.New(s.cfg.TargetWidth, s.cfg.VirtualQuality)

	interval := time.Second / time.Duration(s.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	memo := make(map[string]cursorMemo)

	var ticks, grabFails, encodeFails int
	lastStats := time.Now()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ticks++
			sessions := s.registry.Snapshot()
			host := s.registry.HostScreen()

			// One shared mirror payload per tick; extended clients get
			// their own synthetic frame.
			var mirrorPayload string
			needMirror := false
			for _, sess := range sessions {
				if sess.Mode == session.ModeMirror {
					needMirror = true
					break
				}
			}
			if needMirror {
				img, err := cap.Grab()
				if err != nil {
					// Transient: the ticker paces the retry.
					grabFails++
				} else if data, err := mirror.Encode(img); err != nil {
					encodeFails++
					if encodeFails <= 5 {
						log.Printf("scheduler: encode error: %v", err)
					}
				} else {
					mirrorPayload = base64.StdEncoding.EncodeToString(data)
				}
			}

			live := make(map[string]bool, len(sessions))
			for _, sess := range sessions {
				live[sess.ID] = true
				switch sess.Mode {
				case session.ModeMirror:
					if mirrorPayload != "" {
						s.out.SendTo(sess.ID, protocol.EventFrame, mirrorPayload)
					}
				case session.ModeExtended:
					if err := s.extendedFrame(sess, host, virtual, memo); err != nil {
						encodeFails++
					}
				}
			}
			for id := range memo {
				if !live[id] {
					delete(memo, id)
				}
			}

			if s.cfg.Stats && time.Since(lastStats) >= 5*time.Second {
				log.Printf("scheduler: ticks=%d grabFail=%d encFail=%d clients=%d",
					ticks, grabFails, encodeFails, len(sessions))
				ticks, grabFails, encodeFails = 0, 0, 0
				lastStats = time.Now()
			}
		}
	}
}

// extendedFrame renders and sends one client's virtual display frame, but
// only when the projected cursor position or the display configuration
// changed since the previous tick.
func (s *Scheduler) extendedFrame(sess session.Session, host geometry.Size, enc *encode.Encoder, memo map[string]cursorMemo) error {
	bounds, err := sess.Bounds(host)
	if err != nil {
		return err
	}

	var mark *capture.CursorMark
	state := cursorMemo{
		width:    sess.Resolution.Width,
		height:   sess.Resolution.Height,
		position: sess.Position,
		name:     sess.DisplayName,
	}
	if s.cfg.Cursor != nil {
		cx, cy := s.cfg.Cursor()
		if bounds.Contains(cx, cy) {
			rx, ry := bounds.ToRelative(cx, cy)
			mark = &capture.CursorMark{RX: rx, RY: ry}
			state.hasCursor = true
			state.rx = rx
			state.ry = ry
		}
	}

	if prev, ok := memo[sess.ID]; ok && prev == state {
		return nil
	}
	memo[sess.ID] = state

	img := capture.RenderVirtual(sess.Resolution.Width, sess.Resolution.Height, sess.DisplayName, mark)
	data, err := enc.Encode(img)
	if err != nil {
		log.Printf("scheduler: virtual encode for %s: %v", sess.ID, err)
		return err
	}
	s.out.SendTo(sess.ID, protocol.EventFrame, base64.StdEncoding.EncodeToString(data))
	return nil
}

func (s *Scheduler) audioLoop(ac types.AudioCapturer, stop <-chan struct{}) {
	defer s.wg.Done()

	// A blocking ReadChunk cannot watch the stop channel, so closing the
	// capture is what unblocks it.
	go func() {
		<-stop
		ac.Close()
	}()
	defer ac.Close()

	consecutive := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		chunk, err := ac.ReadChunk()
		if err != nil {
			if errors.Is(err, audio.ErrClosed) {
				return
			}
			consecutive++
			if consecutive >= maxAudioErrors {
				log.Printf("scheduler: audio disabled after %d consecutive read errors: %v", consecutive, err)
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		consecutive = 0

		s.out.Broadcast(protocol.EventAudio, protocol.AudioPayload{
			Data:     base64.StdEncoding.EncodeToString(chunk.Data),
			Rate:     chunk.Rate,
			Channels: chunk.Channels,
		})
	}
}
