package output

import (
	"os"
	"path/filepath"
	"sync"

	"voicehold/internal/domain/notify"
	"voicehold/internal/platform/logging"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// Cue names one of the audible feedback sounds. Each maps to an mp3 file in
// the cue directory; missing files silently disable that cue.
type Cue string

const (
	CueStart Cue = "start"
	CueDone  Cue = "done"
	CueError Cue = "error"
)

var cueFiles = map[Cue]string{
	CueStart: "start.mp3",
	CueDone:  "done.mp3",
	CueError: "error.mp3",
}

// PlaybackDevice plays decoded PCM. The hardware implementation lives with
// the capture backend outside this module.
type PlaybackDevice interface {
	Play(pcm []byte, sampleRate int) error
}

// CuePlayer decodes cue files once at startup and replays them on pipeline
// events. Decoding up front keeps the event path allocation-free.
type CuePlayer struct {
	device PlaybackDevice
	logger *logging.Logger

	mu   sync.Mutex
	pcm  map[Cue][]byte
	rate map[Cue]int
}

// NewCuePlayer loads every cue it can find under dir. A missing directory
// or file is not an error; those cues just stay silent.
func NewCuePlayer(dir string, device PlaybackDevice, logger *logging.Logger) *CuePlayer {
	p := &CuePlayer{
		device: device,
		logger: logger,
		pcm:    make(map[Cue][]byte),
		rate:   make(map[Cue]int),
	}

	for cue, name := range cueFiles {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		dec, err := mp3.NewDecoder(f)
		if err != nil {
			f.Close()
			logger.WarnTag("OUTPUT", "cue %s unreadable: %v", name, err)
			continue
		}
		buf := make([]byte, 0, dec.Length())
		chunk := make([]byte, 4096)
		for {
			n, err := dec.Read(chunk)
			buf = append(buf, chunk[:n]...)
			if err != nil {
				break
			}
		}
		f.Close()
		p.pcm[cue] = buf
		p.rate[cue] = dec.SampleRate()
	}

	if len(p.pcm) > 0 {
		logger.InfoTag("OUTPUT", "loaded %d audio cues from %s", len(p.pcm), dir)
	}
	return p
}

// Play plays a cue if it was loaded and a device is attached.
func (p *CuePlayer) Play(cue Cue) {
	if p.device == nil {
		return
	}
	p.mu.Lock()
	pcm, ok := p.pcm[cue]
	rate := p.rate[cue]
	p.mu.Unlock()
	if !ok {
		return
	}
	if err := p.device.Play(pcm, rate); err != nil {
		p.logger.WarnTag("OUTPUT", "cue playback: %v", err)
	}
}

// Attach subscribes the player to pipeline events so cues fire without the
// orchestrator referencing it.
func (p *CuePlayer) Attach(bus *notify.Bus) error {
	if err := bus.Subscribe(notify.EventSessionStarted, func(data notify.SessionEventData) {
		p.Play(CueStart)
	}); err != nil {
		return err
	}
	if err := bus.Subscribe(notify.EventTextFinal, func(data notify.TextEventData) {
		p.Play(CueDone)
	}); err != nil {
		return err
	}
	if err := bus.Subscribe(notify.EventSessionRejected, func(data notify.SessionEventData) {
		p.Play(CueError)
	}); err != nil {
		return err
	}
	return bus.Subscribe(notify.EventPipelineError, func(data notify.ErrorEventData) {
		p.Play(CueError)
	})
}
