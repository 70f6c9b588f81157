package rnnoise

import (
	"fmt"

	"github.com/xaionaro-go/noisecancel/pkg/audio"
)

const NativeSampleRate = 48000

func upsampleFactor(sampleRate audio.SampleRate) (int, error) {
	if sampleRate == 0 || NativeSampleRate%sampleRate != 0 {
		return 0, fmt.Errorf("sample rate %d does not divide %d", sampleRate, NativeSampleRate)
	}
	return int(NativeSampleRate / sampleRate), nil
}

// upsample fills dst (len(src)*factor) by linear interpolation.
func upsample(dst, src []float32, factor int) {
	if factor == 1 {
		copy(dst, src)
		return
	}
	for idx, cur := range src {
		next := cur
		if idx+1 < len(src) {
			next = src[idx+1]
		}
		base := idx * factor
		for step := 0; step < factor; step++ {
			dst[base+step] = cur + (next-cur)*float32(step)/float32(factor)
		}
	}
}

// downsample fills dst (len(src)/factor) by averaging every factor samples.
func downsample(dst, src []float32, factor int) {
	if factor == 1 {
		copy(dst, src)
		return
	}
	for idx := range dst {
		var sum float32
		for _, v := range src[idx*factor : (idx+1)*factor] {
			sum += v
		}
		dst[idx] = sum / float32(factor)
	}
}
