package oto

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/xaionaro-go/noisecancel/pkg/audio/types"
)

type PlayerPCM struct{}

var _ types.PlayerPCM = (*PlayerPCM)(nil)

func NewPlayerPCM() *PlayerPCM {
	return &PlayerPCM{}
}

func (*PlayerPCM) Close() error {
	return nil
}

func (*PlayerPCM) Ping(context.Context) error {
	// do not know how to do that, yet
	return nil
}

func (*PlayerPCM) PlayPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (types.PlayStream, error) {
	otoCtx, err := getOtoContext(types.Format{
		SampleRate: sampleRate,
		Channels:   channels,
		PCMFormat:  format,
	}, bufferSize)
	if err != nil {
		return nil, fmt.Errorf("unable to get an oto context: %w", err)
	}

	player := otoCtx.NewPlayer(reader)
	player.Play()

	return newStream(player), nil
}

type stream struct {
	*oto.Player
}

func newStream(player *oto.Player) *stream {
	return &stream{
		Player: player,
	}
}

func (s *stream) Drain() error {
	for s.Player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	return s.Player.Err()
}

func (s *stream) Close() error {
	return s.Player.Close()
}
