package types

// AudioFormat tags the encoding of a synthesized clip. The tag in the vendor
// response is authoritative; payload bytes are decoded per the tag, never
// sniffed.
type AudioFormat string

const (
	AudioFormatMP3 AudioFormat = "mp3"
	AudioFormatPCM AudioFormat = "pcm"
)

// PCMSampleRate is the fixed sample rate for raw-PCM synthesis output,
// 16-bit signed little-endian mono.
const PCMSampleRate = 24000

// AudioClip is one synthesized speech payload. Clips are derived data, cached
// per rendered tutor turn and discarded when superseded, never persisted
// across sessions.
type AudioClip struct {
	Format     AudioFormat `json:"format"`
	Data       []byte      `json:"data"`
	SampleRate int         `json:"sampleRate,omitempty"` // PCM only
}
