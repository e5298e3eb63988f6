package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/cafe/internal/room"
	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const (
	streamID          = "cafe"
	opusClockRate     = 48000
	oggPageDuration   = 20 * time.Millisecond
	defaultFrameDelay = 33 * time.Millisecond
)

// Track is a local sample track whose output can be muted. Samples written
// while disabled are discarded.
type Track struct {
	*pion.TrackLocalStaticSample
	enabled atomic.Bool
}

func newTrack(capability pion.RTPCodecCapability, id string) (*Track, error) {
	local, err := pion.NewTrackLocalStaticSample(capability, id, streamID)
	if err != nil {
		return nil, err
	}
	t := &Track{TrackLocalStaticSample: local}
	t.enabled.Store(true)
	return t, nil
}

func (t *Track) Enabled() bool           { return t.enabled.Load() }
func (t *Track) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

func (t *Track) WriteSample(s media.Sample) error {
	if !t.Enabled() {
		return nil
	}
	return t.TrackLocalStaticSample.WriteSample(s)
}

// Stream is one VP8 video track and one Opus audio track, fed from files
// when configured.
type Stream struct {
	video *Track
	audio *Track

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	files  []*os.File
}

func (s *Stream) Audio() room.Track { return s.audio }
func (s *Stream) Video() room.Track { return s.video }

func (s *Stream) Tracks() []pion.TrackLocal {
	return []pion.TrackLocal{s.video.TrackLocalStaticSample, s.audio.TrackLocalStaticSample}
}

// Stop ends the sample pumps and closes the source files. Safe to call
// more than once.
func (s *Stream) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		for _, f := range s.files {
			_ = f.Close()
		}
	})
}

// FileSource plays an IVF (VP8) file and an Ogg (Opus) file into the call,
// looping both. With no paths configured the tracks stay silent.
type FileSource struct {
	VideoPath string
	AudioPath string
	Logger    *slog.Logger
}

func (fs *FileSource) Acquire(ctx context.Context) (room.LocalStream, error) {
	log := fs.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "media")

	video, err := newTrack(pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8}, "video")
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}
	audio, err := newTrack(pion.RTPCodecCapability{
		MimeType:  pion.MimeTypeOpus,
		ClockRate: opusClockRate,
		Channels:  2,
	}, "audio")
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Stream{video: video, audio: audio, cancel: cancel}

	sources := []struct {
		path  string
		open  opener
		track *Track
	}{
		{fs.VideoPath, openIVF, video},
		{fs.AudioPath, openOgg, audio},
	}
	for _, src := range sources {
		if src.path == "" {
			continue
		}
		f, err := os.Open(src.path)
		if err != nil {
			s.Stop()
			return nil, fmt.Errorf("open %s: %w", src.path, err)
		}
		s.files = append(s.files, f)

		samples, interval, err := src.open(f)
		if err != nil {
			s.Stop()
			return nil, fmt.Errorf("read %s: %w", src.path, err)
		}

		s.wg.Add(1)
		go func(f *os.File, open opener, samples sampleReader, interval time.Duration, track *Track) {
			defer s.wg.Done()
			pump(pumpCtx, log.With("file", f.Name()), f, open, samples, interval, track)
		}(f, src.open, samples, interval, src.track)
	}

	return s, nil
}

type sampleReader interface {
	next() (media.Sample, error)
}

// opener parses a container header and returns its sample reader and the
// pacing interval.
type opener func(r io.Reader) (sampleReader, time.Duration, error)

type ivfSamples struct {
	r     *ivfreader.IVFReader
	frame time.Duration
}

func openIVF(r io.Reader) (sampleReader, time.Duration, error) {
	reader, header, err := ivfreader.NewWith(r)
	if err != nil {
		return nil, 0, err
	}

	frame := defaultFrameDelay
	if header.TimebaseDenominator != 0 && header.TimebaseNumerator != 0 {
		frame = time.Duration(float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator) * float64(time.Second))
	}
	return &ivfSamples{r: reader, frame: frame}, frame, nil
}

func (s *ivfSamples) next() (media.Sample, error) {
	frame, _, err := s.r.ParseNextFrame()
	if err != nil {
		return media.Sample{}, err
	}
	return media.Sample{Data: frame, Duration: s.frame}, nil
}

type oggSamples struct {
	r       *oggreader.OggReader
	granule uint64
}

func openOgg(r io.Reader) (sampleReader, time.Duration, error) {
	reader, _, err := oggreader.NewWith(r)
	if err != nil {
		return nil, 0, err
	}
	return &oggSamples{r: reader}, oggPageDuration, nil
}

func (s *oggSamples) next() (media.Sample, error) {
	page, header, err := s.r.ParseNextPage()
	if err != nil {
		return media.Sample{}, err
	}

	count := header.GranulePosition - s.granule
	s.granule = header.GranulePosition
	duration := time.Duration(float64(count) / opusClockRate * float64(time.Second))
	return media.Sample{Data: page, Duration: duration}, nil
}

// pump writes one sample per interval, rewinding the file at EOF.
func pump(ctx context.Context, log *slog.Logger, f io.ReadSeeker, open opener, samples sampleReader, interval time.Duration, track *Track) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sample, err := samples.next()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				log.Warn("rewind failed", "error", err)
				return
			}
			if samples, _, err = open(f); err != nil {
				log.Warn("reopen failed", "error", err)
				return
			}
			continue
		}
		if err != nil {
			log.Warn("read sample failed", "error", err)
			return
		}

		if err := track.WriteSample(sample); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			log.Debug("write sample failed", "error", err)
		}
	}
}
