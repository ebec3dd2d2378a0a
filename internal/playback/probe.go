package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/Digital-Shane/sora/internal/provider"
	"gopkg.in/vansante/go-ffprobe.v2"
)

// probeFunc matches ffprobe.ProbeURL.
type probeFunc func(ctx context.Context, url string, extraOpts ...string) (*ffprobe.ProbeData, error)

// StreamInfo is what ffprobe reports about the default stream.
type StreamInfo struct {
	Container  string
	VideoCodec string
	AudioCodec string
	Resolution string
	Duration   time.Duration
}

// Prober inspects remote streams with ffprobe.
type Prober struct {
	probe   probeFunc
	timeout time.Duration
}

// NewProber returns a prober that gives up after timeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Prober{probe: ffprobe.ProbeURL, timeout: timeout}
}

// Probe reads the container and first video/audio streams of url.
func (p *Prober) Probe(ctx context.Context, url string) (*StreamInfo, error) {
	if url == "" {
		return nil, &provider.ProviderError{
			Provider: "ffprobe",
			Code:     provider.CodeInvalidRequest,
			Message:  "ffprobe requires a stream url",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	data, err := p.probe(ctx, url)
	if err != nil {
		return nil, &provider.ProviderError{
			Provider: "ffprobe",
			Code:     "PROBE_FAILED",
			Message:  fmt.Sprintf("ffprobe failed for %s: %v", url, err),
		}
	}

	info := &StreamInfo{}
	if data == nil {
		return info, nil
	}
	if data.Format != nil {
		info.Container = data.Format.FormatName
		info.Duration = time.Duration(data.Format.DurationSeconds * float64(time.Second))
	}
	if video := data.FirstVideoStream(); video != nil {
		info.VideoCodec = pickCodecName(video)
		if video.Height > 0 {
			info.Resolution = fmt.Sprintf("%dp", video.Height)
		}
	}
	if audio := data.FirstAudioStream(); audio != nil {
		info.AudioCodec = pickCodecName(audio)
	}
	return info, nil
}

func pickCodecName(stream *ffprobe.Stream) string {
	if stream == nil {
		return ""
	}
	if stream.CodecName != "" {
		return stream.CodecName
	}
	return stream.CodecLongName
}
