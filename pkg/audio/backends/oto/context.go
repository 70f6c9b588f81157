package oto

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/xaionaro-go/noisecancel/pkg/audio/types"
)

// oto allows only one context per process, so the first requested
// format is the only one this backend can ever play.
var (
	otoCtxLocker sync.Mutex
	otoCtx       *oto.Context
	otoCtxFormat types.Format
)

func getOtoContext(
	format types.Format,
	bufferSize time.Duration,
) (*oto.Context, error) {
	otoCtxLocker.Lock()
	defer otoCtxLocker.Unlock()

	if otoCtx != nil {
		if format != otoCtxFormat {
			return nil, fmt.Errorf("oto is already initialized with %#+v, cannot play %#+v", otoCtxFormat, format)
		}
		return otoCtx, nil
	}

	var otoFormat oto.Format
	switch format.PCMFormat {
	case types.PCMFormatU8:
		otoFormat = oto.FormatUnsignedInt8
	case types.PCMFormatS16LE:
		otoFormat = oto.FormatSignedInt16LE
	case types.PCMFormatFloat32LE:
		otoFormat = oto.FormatFloat32LE
	default:
		return nil, fmt.Errorf("oto does not support PCM format %s", format.PCMFormat)
	}

	ctx, readyChan, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(format.SampleRate),
		ChannelCount: int(format.Channels),
		Format:       otoFormat,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to initialize an oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoCtxFormat = format
	return otoCtx, nil
}
