package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/fluently/lingua/pkg/core/types"
	"github.com/fluently/lingua/pkg/core/voice"
)

// audioIO owns the microphone and speaker for the chat loop. Both run at
// the tutor's PCM rate; decoded clips at other rates are converted before
// playback since the speaker context is created once per process.
type audioIO struct {
	malgoCtx *malgo.AllocatedContext
	otoCtx   *oto.Context

	mu      sync.Mutex
	playing *oto.Player
}

func newAudioIO() (*audioIO, error) {
	malgoConfig := malgo.ContextConfig{}
	malgoConfig.ThreadPriority = malgo.ThreadPriorityRealtime
	malgoCtx, err := malgo.InitContext(nil, malgoConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	// At 24kHz mono 16-bit: 4800 bytes is ~100ms of audio. Smaller buffer
	// means lower latency at the cost of glitches on slow machines.
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   types.PCMSampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   4800,
	})
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	return &audioIO{malgoCtx: malgoCtx, otoCtx: otoCtx}, nil
}

func (a *audioIO) Close() {
	a.stopPlayback()
	if a.malgoCtx != nil {
		_ = a.malgoCtx.Uninit()
		a.malgoCtx.Free()
	}
}

// Record captures s16le mono PCM from the default microphone for the given
// duration.
func (a *audioIO) Record(d time.Duration) (voice.Recording, error) {
	var (
		mu  sync.Mutex
		buf []byte
	)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = types.PCMSampleRate
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			mu.Lock()
			buf = append(buf, samples...)
			mu.Unlock()
		},
	}

	device, err := malgo.InitDevice(a.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return voice.Recording{}, fmt.Errorf("init microphone: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return voice.Recording{}, fmt.Errorf("start microphone: %w", err)
	}
	time.Sleep(d)
	_ = device.Stop()

	mu.Lock()
	data := make([]byte, len(buf))
	copy(data, buf)
	mu.Unlock()

	return voice.Recording{
		Data:     data,
		MIMEType: fmt.Sprintf("audio/pcm;rate=%d", types.PCMSampleRate),
		Duration: d,
	}, nil
}

// Play converts the decoded buffer to the fixed device format and plays it
// to completion, stopping whatever was playing before. One clip at a time.
func (a *audioIO) Play(buf *voice.PlaybackBuffer) error {
	a.stopPlayback()

	samples := deviceSamples(buf)
	pcm := make([]byte, 0, len(samples)*2)
	for _, sample := range samples {
		v := sample
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * 32767)
		pcm = append(pcm, byte(s), byte(s>>8))
	}

	player := a.otoCtx.NewPlayer(&pcmReader{data: pcm})
	a.mu.Lock()
	a.playing = player
	a.mu.Unlock()

	player.Play()
	for player.IsPlaying() {
		time.Sleep(20 * time.Millisecond)
	}
	return player.Close()
}

// deviceSamples converts a decoded buffer to the speaker's fixed format,
// mono at types.PCMSampleRate. Stereo frames are averaged and other rates
// are linearly interpolated. MP3 clips typically decode as stereo 44.1kHz.
func deviceSamples(buf *voice.PlaybackBuffer) []float32 {
	samples := buf.Samples
	if buf.Channels == 2 {
		mono := make([]float32, len(samples)/2)
		for i := range mono {
			mono[i] = (samples[2*i] + samples[2*i+1]) / 2
		}
		samples = mono
	}

	rate := buf.SampleRate
	if rate <= 0 || rate == types.PCMSampleRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(rate) / float64(types.PCMSampleRate)
	out := make([]float32, int(float64(len(samples))/ratio))
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j+1 >= len(samples) {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

func (a *audioIO) stopPlayback() {
	a.mu.Lock()
	player := a.playing
	a.playing = nil
	a.mu.Unlock()
	if player != nil && player.IsPlaying() {
		player.Pause()
		_ = player.Close()
	}
}

type pcmReader struct {
	data []byte
	off  int
}

func (r *pcmReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}
