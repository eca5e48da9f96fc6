// Package player drives a parsed song in real time: the hot loop that
// turns TimedEvents into key taps while honoring live speed, pause,
// seek, loop, and band-filter changes.
package player

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"midicompanion/core"
)

// ErrNoMidiLoaded is returned by Start when no song has been loaded.
var ErrNoMidiLoaded = errors.New("no MIDI file loaded")

// Dispatcher is the key-delivery surface the scheduler drives. The
// injector implements it.
type Dispatcher interface {
	KeyDown(key string)
	KeyUp(key string)
	ReleaseAll()
}

// Emitter receives the scheduler's progress and note events. The SSE
// bus implements it.
type Emitter interface {
	Emit(event string, payload any)
}

// KeyFunc is the pure mapping function (mapper.KeyFor), injected so
// the package stays decoupled from the mapper's tables.
type KeyFunc func(note, transpose int, mode core.NoteMode, layout core.KeyMode) string

const (
	// maxSleepChunk bounds one timing-loop sleep so live speed and
	// pause changes take effect within ~2ms of wall time.
	maxSleepChunk = 2 * time.Millisecond
	pausePoll     = 50 * time.Millisecond
	progressTick  = 100 * time.Millisecond
	loopRestGap   = 500 * time.Millisecond
	stopWaitLimit = 200 * time.Millisecond
)

// Player owns at most one playback session at a time.
type Player struct {
	eng    *core.Engine
	keys   Dispatcher
	emit   Emitter
	keyFor KeyFunc
	log    *zap.Logger

	mu   sync.Mutex
	done chan struct{} // closed when the current worker exits
}

// New builds a player over the given dispatcher and event sink.
func New(eng *core.Engine, keys Dispatcher, emit Emitter, keyFor KeyFunc) *Player {
	return &Player{eng: eng, keys: keys, emit: emit, keyFor: keyFor, log: eng.Log}
}

// Start launches the playback worker for the currently loaded song.
// Idempotence: a running session is stopped first.
func (p *Player) Start() error {
	data := p.eng.MidiData()
	if data == nil {
		return ErrNoMidiLoaded
	}

	p.Stop()

	p.eng.Transport.SetPlaying(true)
	p.eng.Transport.SetPaused(false)
	offset := p.eng.Mapper.SeekOffsetSeconds()
	p.eng.Transport.SetCurrentPosition(offset)

	done := make(chan struct{})
	p.mu.Lock()
	p.done = done
	p.mu.Unlock()

	go p.progressLoop()
	go func() {
		defer close(done)
		p.run(data)
	}()

	p.log.Info("playback started",
		zap.Float64("offset_s", offset),
		zap.Float64("speed", p.eng.Mapper.Speed()))
	return nil
}

// Stop signals the worker and waits briefly for its release pass.
func (p *Player) Stop() {
	p.eng.Transport.SetPlaying(false)
	p.eng.Transport.SetPaused(false)

	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-time.After(stopWaitLimit):
			p.log.Warn("playback worker did not exit promptly")
		}
	}
	p.eng.Transport.SetCurrentPosition(0)
}

// TogglePause flips the paused flag; a no-op while stopped.
func (p *Player) TogglePause() {
	if p.eng.Transport.IsPlaying() {
		p.eng.Transport.SetPaused(!p.eng.Transport.IsPaused())
	}
}

// Seek repositions the session. While playing, the worker restarts at
// the offset and the paused state survives the restart; while stopped,
// only the stored position moves.
func (p *Player) Seek(position float64) error {
	if position < 0 {
		position = 0
	}
	wasPaused := p.eng.Transport.IsPaused()

	if p.eng.Transport.IsPlaying() {
		p.eng.Mapper.SetSeekOffsetSeconds(position)
		if err := p.Start(); err != nil {
			return err
		}
		if wasPaused {
			p.eng.Transport.SetPaused(true)
		}
		return nil
	}

	p.eng.Transport.SetCurrentPosition(position)
	p.eng.Mapper.SetSeekOffsetSeconds(position)
	return nil
}

// State projects the live atomics into a serializable snapshot.
func (p *Player) State() core.PlaybackState {
	return core.PlaybackState{
		IsPlaying:       p.eng.Transport.IsPlaying(),
		IsPaused:        p.eng.Transport.IsPaused(),
		CurrentPosition: p.eng.Transport.CurrentPosition(),
		TotalDuration:   p.eng.Transport.TotalDuration(),
		CurrentFile:     p.eng.Transport.CurrentFile(),
		LoopMode:        p.eng.Transport.LoopMode(),
		NoteMode:        p.eng.Mapper.NoteMode(),
		KeyMode:         p.eng.Mapper.KeyMode(),
		OctaveShift:     p.eng.Mapper.OctaveShift(),
		Speed:           p.eng.Mapper.Speed(),
	}
}

// progressLoop emits playback-progress at 10 Hz while the session runs
// and is not paused.
func (p *Player) progressLoop() {
	for p.eng.Transport.IsPlaying() {
		if !p.eng.Transport.IsPaused() {
			p.emit.Emit("playback-progress", p.eng.Transport.CurrentPosition())
		}
		time.Sleep(progressTick)
	}
}

// run is the worker body: the outer loop restarts the sequence in loop
// mode, the inner loop walks events with chunked sleeps.
func (p *Player) run(data *core.MidiData) {
	for {
		offsetMs := uint64(p.eng.Mapper.SeekOffsetSeconds() * 1000.0)

		songPositionMs := offsetMs
		lastEventTime := time.Now()
		noteOnCounter := 0

		for i := range data.Events {
			event := &data.Events[i]
			if event.TimeMs < offsetMs {
				continue
			}

			if !p.eng.Transport.IsPlaying() {
				p.keys.ReleaseAll()
				return
			}

			// Consume the song-time delta in small real-time chunks so
			// speed changes land within one chunk.
			if delta := event.TimeMs - songPositionMs; delta > 0 {
				remaining := float64(delta)
				for remaining > 0 {
					if !p.eng.Transport.IsPlaying() {
						p.keys.ReleaseAll()
						return
					}

					if p.eng.Transport.IsPaused() {
						for p.eng.Transport.IsPaused() && p.eng.Transport.IsPlaying() {
							time.Sleep(pausePoll)
						}
						if !p.eng.Transport.IsPlaying() {
							p.keys.ReleaseAll()
							return
						}
						// Reset the baseline so unpausing does not
						// "catch up" the paused wall time.
						lastEventTime = time.Now()
						continue
					}

					speed := p.eng.Mapper.Speed()
					sleepMs := remaining / speed
					if m := float64(maxSleepChunk) / float64(time.Millisecond); sleepMs > m {
						sleepMs = m
					}
					time.Sleep(time.Duration(sleepMs * float64(time.Millisecond)))

					elapsed := time.Since(lastEventTime)
					lastEventTime = time.Now()

					remaining -= elapsed.Seconds() * 1000.0 * speed
					pos := (float64(event.TimeMs) - maxFloat(remaining, 0)) / 1000.0
					p.eng.Transport.SetCurrentPosition(pos)
				}
			}

			songPositionMs = event.TimeMs
			lastEventTime = time.Now()

			if event.Type != core.EventNoteOn {
				// Note-offs carry no action under tap semantics.
				continue
			}

			// Band filter is re-read on every note-on so a live
			// switch applies to the very next event.
			filter := p.eng.Mapper.BandFilter()
			shouldPlay := true
			switch filter.Mode {
			case core.BandFilterSplit:
				if filter.TotalPlayers > 0 {
					shouldPlay = noteOnCounter%filter.TotalPlayers == filter.Slot
				}
				noteOnCounter++
			case core.BandFilterTrack:
				shouldPlay = event.TrackID == filter.TrackID
			}
			if !shouldPlay {
				continue
			}

			transpose := p.eng.Mapper.EffectiveTranspose(data.Transpose)
			key := p.keyFor(int(event.Note), transpose, p.eng.Mapper.NoteMode(), p.eng.Mapper.KeyMode())

			// Tap: press and release immediately; the instrument has
			// no holds.
			p.keys.KeyDown(key)
			p.keys.KeyUp(key)
			p.emit.Emit("note-event", key)
		}

		p.keys.ReleaseAll()

		if !p.eng.Transport.LoopMode() {
			break
		}

		p.eng.Mapper.SetSeekOffsetSeconds(0)
		p.eng.Transport.SetCurrentPosition(0)
		time.Sleep(loopRestGap)

		if !p.eng.Transport.IsPlaying() {
			return
		}
	}

	p.eng.Transport.SetPlaying(false)
	p.emit.Emit("playback-ended", nil)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
